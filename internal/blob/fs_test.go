package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTempFS(t *testing.T) *Filesystem {
	t.Helper()
	f, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	return f
}

func TestFilesystemRoundTrip(t *testing.T) {
	f := newTempFS(t)
	ctx := context.Background()

	opts := PutOptions{ContentType: "text/csv", Metadata: map[string]string{"sample": "s1"}}
	if _, err := f.Put(ctx, "s1/populations/live.csv", strings.NewReader("event_id\n1\n2\n"), opts); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, rc, err := f.Get(ctx, "s1/populations/live.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "event_id\n1\n2\n" {
		t.Fatalf("contents = %q", data)
	}
	// Sidecar metadata survives the round trip.
	if info.ContentType != "text/csv" || info.Metadata["sample"] != "s1" {
		t.Fatalf("info = %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("url = %q", info.URL)
	}
}

func TestFilesystemPutIsCreateOnly(t *testing.T) {
	f := newTempFS(t)
	ctx := context.Background()
	if _, err := f.Put(ctx, "k.txt", strings.NewReader("a"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := f.Put(ctx, "k.txt", strings.NewReader("b"), PutOptions{}); err == nil {
		t.Fatal("overwriting an existing key must fail")
	}
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	f := newTempFS(t)
	ctx := context.Background()
	for _, key := range []string{"../outside.txt", "/etc/passwd", "."} {
		if _, err := f.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestFilesystemDelete(t *testing.T) {
	f := newTempFS(t)
	ctx := context.Background()
	if _, err := f.Put(ctx, "k.txt", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := f.Delete(ctx, "k.txt")
	if err != nil || !existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
	if _, err := f.Head(ctx, "k.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("head after delete: %v", err)
	}
	existed, err = f.Delete(ctx, "k.txt")
	if err != nil || existed {
		t.Fatalf("second delete = %v, %v", existed, err)
	}
}

func TestFilesystemListSkipsSidecars(t *testing.T) {
	f := newTempFS(t)
	ctx := context.Background()
	for _, key := range []string{"s1/a.csv", "s1/b.csv", "s2/c.csv"} {
		if _, err := f.Put(ctx, key, strings.NewReader("x"), PutOptions{ContentType: "text/csv"}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := f.List(ctx, "s1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("list = %+v", infos)
	}
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".meta.json") {
			t.Fatalf("sidecar leaked into listing: %s", info.Key)
		}
	}
}

func TestFilesystemPresignUnsupported(t *testing.T) {
	f := newTempFS(t)
	if _, err := f.PresignURL(context.Background(), "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign: %v", err)
	}
}
