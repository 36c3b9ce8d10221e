package blob

import (
	"context"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("CYTOGATE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %q", store.Driver())
	}

	t.Setenv("CYTOGATE_BLOB_DRIVER", "fs")
	t.Setenv("CYTOGATE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %q", store.Driver())
	}

	t.Setenv("CYTOGATE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(ctx); err == nil {
		t.Fatal("unknown driver must fail")
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	t.Setenv("CYTOGATE_BLOB_DRIVER", "s3")
	t.Setenv("CYTOGATE_BLOB_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("s3 driver without a bucket must fail")
	}
}
