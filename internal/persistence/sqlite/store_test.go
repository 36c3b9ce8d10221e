package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"cytogate/pkg/domain"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "state", "gating.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Populations: []domain.PopulationRecord{
			{Name: domain.RootName, Index: []int64{1, 2, 3}},
			{Name: "live", Parent: domain.RootName, Index: []int64{1, 2}, Warnings: []string{"low event count"}},
		},
		Gates: []domain.GateRecord{
			{Name: "g", Parent: domain.RootName, Strategy: "static", Method: "threshold", Children: []string{"live"}},
		},
	}
}

func TestLoadMissingSampleIsEmpty(t *testing.T) {
	s := newTempStore(t)
	snapshot, err := s.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snapshot.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTempStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "s1", testSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Populations) != 2 || len(loaded.Gates) != 1 {
		t.Fatalf("round trip lost records: %+v", loaded)
	}
	if loaded.Populations[1].Warnings[0] != "low event count" {
		t.Fatalf("warnings lost: %+v", loaded.Populations[1])
	}
}

func TestSaveReplacesExistingPayload(t *testing.T) {
	s := newTempStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "s1", testSnapshot()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	smaller := domain.Snapshot{Populations: []domain.PopulationRecord{{Name: domain.RootName, Index: []int64{1}}}}
	if err := s.Save(ctx, "s1", smaller); err != nil {
		t.Fatalf("second save: %v", err)
	}
	loaded, _ := s.Load(ctx, "s1")
	if len(loaded.Populations) != 1 || len(loaded.Gates) != 0 {
		t.Fatalf("save must replace wholesale, got %+v", loaded)
	}
}

func TestSamplesAreIndependent(t *testing.T) {
	s := newTempStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "s1", testSnapshot()); err != nil {
		t.Fatalf("save s1: %v", err)
	}
	other, err := s.Load(ctx, "s2")
	if err != nil {
		t.Fatalf("load s2: %v", err)
	}
	if !other.IsEmpty() {
		t.Fatal("samples must not share state")
	}
}

func TestDefaultPath(t *testing.T) {
	s := newTempStore(t)
	if s.Path() == "" {
		t.Fatal("store must report its backing file")
	}
}
