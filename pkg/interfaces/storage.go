package interfaces

import (
	"context"
	"errors"
	"io"
)

// ErrObjectExists is returned by Put when IfNotExists is set and the object is already present.
var ErrObjectExists = errors.New("object already exists")

// ObjectStorage writes published artifacts to a bucket or directory.
type ObjectStorage interface {
	// Put writes data to path.
	Put(ctx context.Context, path string, data io.Reader, opts PutOptions) error

	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)

	// Scheme returns the storage scheme (e.g., "file", "s3", "gs").
	Scheme() string
}

// PutOptions configures write operations.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// If set, the write will fail with ErrObjectExists if the object already exists.
	IfNotExists bool
}
