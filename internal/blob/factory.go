package blob

import (
	"context"
	"fmt"
	"os"
)

// Environment variables consulted by Open.
const (
	EnvDriver = "CYTOGATE_BLOB_DRIVER"  // fs|s3|memory, default fs
	EnvFSRoot = "CYTOGATE_BLOB_FS_ROOT" // directory root when driver=fs
)

// Open builds the Store named by EnvDriver. An unset driver means the
// filesystem store rooted at EnvFSRoot (or ./blobdata when that is unset
// too). S3-specific variables are documented in s3.go.
func Open(ctx context.Context) (Store, error) {
	name := Driver(os.Getenv(EnvDriver))
	switch name {
	case "", DriverFilesystem:
		return NewFilesystem(os.Getenv(EnvFSRoot))
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return OpenS3FromEnv(ctx)
	}
	return nil, fmt.Errorf("unknown blob driver %s", name)
}
