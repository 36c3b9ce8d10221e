// Package memory provides an in-memory PersistenceAdapter for tests and
// ephemeral sessions. Snapshots are deep-copied on every load and save so
// callers never share state with the store.
package memory

import (
	"context"
	"sync"

	"cytogate/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistenceAdapter = (*Store)(nil)

// Store keeps one snapshot per sample in process memory.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]domain.Snapshot)}
}

// Load returns the persisted snapshot for a sample, or an empty snapshot when
// the sample has never been saved.
func (s *Store) Load(_ context.Context, sampleID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[sampleID]
	if !ok {
		return domain.Snapshot{}, nil
	}
	return snapshot.Clone(), nil
}

// Save replaces the persisted snapshot for a sample.
func (s *Store) Save(_ context.Context, sampleID string, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[sampleID] = snapshot.Clone()
	return nil
}

// Samples returns the ids of all persisted samples.
func (s *Store) Samples() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		out = append(out, id)
	}
	return out
}
