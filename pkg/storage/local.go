package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local is a Store over a directory tree.
type Local struct {
	root string
}

// NewLocal makes dir absolute and creates it if missing.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(l.resolve(path))
}

// OpenAt returns the file positioned at offset. Offsets past the end are
// allowed and read as empty.
func (l *Local) OpenAt(_ context.Context, path string, offset int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, fmt.Errorf("storage: negative offset %d", offset)
	}
	f, err := os.Open(l.resolve(path))
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (l *Local) Size(_ context.Context, path string) (int64, error) {
	fi, err := os.Stat(l.resolve(path))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Create truncates or creates the file and any missing parents.
func (l *Local) Create(_ context.Context, path string) (io.WriteCloser, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

var _ Store = (*Local)(nil)
