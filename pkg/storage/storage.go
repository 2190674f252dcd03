// Package storage opens Ogg Opus streams from local disk or S3-compatible
// object stores. Besides whole-file reads it supports reads starting at a
// byte offset, which is how a stream is entered at a seek point.
package storage

import (
	"context"
	"io"
)

// Source is read access to stored streams.
//
// Paths use forward slashes and are relative to the store root. Methods
// may be called concurrently.
type Source interface {
	// Open reads the whole file. A missing file yields an error wrapping
	// os.ErrNotExist.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenAt reads from byte offset to the end of the file.
	OpenAt(ctx context.Context, path string, offset int64) (io.ReadCloser, error)

	Size(ctx context.Context, path string) (int64, error)
}

// Store is a Source that can also create files.
type Store interface {
	Source

	// Create replaces the file. The data is only guaranteed to be stored
	// once Close returns nil.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}
