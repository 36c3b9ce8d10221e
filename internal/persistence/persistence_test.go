package persistence

import (
	"path/filepath"
	"testing"

	"cytogate/internal/persistence/memory"
	"cytogate/internal/persistence/sqlite"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	t.Setenv("CYTOGATE_STORAGE_DRIVER", "memory")
	adapter, err := Open()
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := adapter.(*memory.Store); !ok {
		t.Fatalf("adapter = %T, want *memory.Store", adapter)
	}

	t.Setenv("CYTOGATE_STORAGE_DRIVER", "sqlite")
	t.Setenv("CYTOGATE_SQLITE_PATH", filepath.Join(t.TempDir(), "gating.db"))
	adapter, err = Open()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, ok := adapter.(*sqlite.Store)
	if !ok {
		t.Fatalf("adapter = %T, want *sqlite.Store", adapter)
	}
	defer store.Close()

	t.Setenv("CYTOGATE_STORAGE_DRIVER", "stone-tablet")
	if _, err := Open(); err == nil {
		t.Fatal("unknown driver must fail")
	}
}
