// Package blob provides the archive sinks a store snapshot can be exported
// to: an in-memory sink for tests, a filesystem sink, and an S3-compatible
// sink. Keys map to object keys directly; payloads are opaque JSON.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound reports a missing archive object.
var ErrNotFound = errors.New("blob not found")

// Driver identifies a concrete sink implementation.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Store is the minimal sink surface snapshot archiving needs.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, payload []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// OpenFromEnv selects a sink using environment variables. Defaults to the
// filesystem sink when unset.
//
//	SPECSTORE_ARCHIVE_DRIVER: memory|fs|s3 (default fs)
//	SPECSTORE_ARCHIVE_FS_ROOT: base directory for the fs driver
//	SPECSTORE_ARCHIVE_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE: s3 driver
func OpenFromEnv(ctx context.Context) (Store, error) {
	driver := os.Getenv("SPECSTORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("SPECSTORE_ARCHIVE_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
