// Package sqlite provides a PersistenceAdapter backed by an embedded SQLite
// file. Each sample's gating snapshot is stored as a single JSON payload,
// replaced wholesale on every save.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"cytogate/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistenceAdapter = (*Store)(nil)

const defaultPath = "cytogate.db"

// Store persists gating snapshots to a single SQLite table keyed by sample id.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) a SQLite-backed store at the given
// path, defaulting to ./cytogate.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS gating_state (
		sample_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create gating_state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file backing the store.
func (s *Store) Path() string { return s.path }

// Load returns the persisted snapshot for a sample, or an empty snapshot when
// none exists.
func (s *Store) Load(ctx context.Context, sampleID string) (domain.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM gating_state WHERE sample_id = ?`, sampleID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Save replaces the persisted snapshot for a sample.
func (s *Store) Save(ctx context.Context, sampleID string, snapshot domain.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO gating_state(sample_id, payload) VALUES(?, ?)
		ON CONFLICT(sample_id) DO UPDATE SET payload = excluded.payload`, sampleID, payload); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
