package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	info, err := m.Put(ctx, "s1/populations/live.csv", strings.NewReader("event_id\n1\n"), PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 11 || info.ContentType != "text/csv" {
		t.Fatalf("info = %+v", info)
	}

	got, rc, err := m.Get(ctx, "s1/populations/live.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "event_id\n1\n" {
		t.Fatalf("contents = %q", data)
	}
	if got.Key != "s1/populations/live.csv" {
		t.Fatalf("key = %q", got.Key)
	}
}

func TestMemoryPutIsCreateOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.Put(ctx, "k", strings.NewReader("a"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := m.Put(ctx, "k", strings.NewReader("b"), PutOptions{}); err == nil {
		t.Fatal("overwriting an existing key must fail")
	}
}

func TestMemoryMissingKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, _, err := m.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if _, err := m.Head(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("head: %v", err)
	}
	existed, err := m.Delete(ctx, "nope")
	if err != nil || existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
}

func TestMemoryListSortedByPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, key := range []string{"s1/b.csv", "s1/a.csv", "s2/c.csv"} {
		if _, err := m.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := m.List(ctx, "s1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "s1/a.csv" || infos[1].Key != "s1/b.csv" {
		t.Fatalf("list = %+v", infos)
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	if _, err := NewMemory().PresignURL(context.Background(), "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign: %v", err)
	}
}
