package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultFSRoot = "./blobdata"

// Filesystem stores blobs as files under a root directory, with a sidecar
// JSON file per blob carrying content type and metadata.
type Filesystem struct {
	root string
}

// NewFilesystem constructs a filesystem store rooted at dir, defaulting to
// ./blobdata.
func NewFilesystem(dir string) (*Filesystem, error) {
	if dir == "" {
		dir = defaultFSRoot
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: dir}, nil
}

// Driver implements Store.
func (f *Filesystem) Driver() Driver { return DriverFilesystem }

// Root returns the directory the store writes under.
func (f *Filesystem) Root() string { return f.root }

type fsSidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (f *Filesystem) paths(key string) (string, string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", "", fmt.Errorf("blob: invalid key %q", key)
	}
	path := filepath.Join(f.root, clean)
	return path, path + ".meta.json", nil
}

// Put stores a new blob. Overwriting an existing key is an error.
func (f *Filesystem) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	path, meta, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(path); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return Info{}, fmt.Errorf("create blob dirs: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return Info{}, err
	}
	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return Info{}, err
	}
	side, err := json.Marshal(fsSidecar{ContentType: opts.ContentType, Metadata: opts.Metadata})
	if err == nil {
		err = os.WriteFile(meta, side, 0o640)
	}
	if err != nil {
		_ = os.Remove(path)
		_ = os.Remove(meta)
		return Info{}, err
	}
	return Info{
		Key:          key,
		Size:         size,
		ContentType:  opts.ContentType,
		Metadata:     opts.Metadata,
		LastModified: time.Now().UTC(),
		URL:          "file://" + path,
	}, nil
}

// Get returns a blob's metadata and an open reader for its contents.
func (f *Filesystem) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := f.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	path, _, err := f.paths(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Info{}, nil, err
	}
	return info, file, nil
}

// Head returns a blob's metadata.
func (f *Filesystem) Head(_ context.Context, key string) (Info, error) {
	path, meta, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	stat, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	var side fsSidecar
	if raw, err := os.ReadFile(meta); err == nil {
		_ = json.Unmarshal(raw, &side)
	}
	return Info{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  side.ContentType,
		Metadata:     side.Metadata,
		LastModified: stat.ModTime().UTC(),
		URL:          "file://" + path,
	}, nil
}

// Delete removes a blob and its sidecar, reporting whether it existed.
func (f *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	path, meta, err := f.paths(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = os.Remove(meta)
	return true, nil
}

// List returns metadata for all blobs under a key prefix, sorted by key.
func (f *Filesystem) List(ctx context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, ".meta.json") {
			return err
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := f.Head(ctx, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL is unsupported for the filesystem driver.
func (f *Filesystem) PresignURL(context.Context, string, SignedURLOptions) (string, error) {
	return "", ErrUnsupported
}

var _ Store = (*Filesystem)(nil)
