// Package fsx is a small file store abstraction with local disk and S3
// backends. Paths are slash separated and relative to the store root.
package fsx

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
)

// FileInfo describes a stored file.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type Reader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	// List returns the files under prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

type Writer interface {
	WriteFile(ctx context.Context, path string, data []byte, contentType string) error
}

// FileSystem is the full store.
type FileSystem interface {
	Reader
	Writer
	DeleteFile(ctx context.Context, path string) error
}

var fsxErrors = errx.NewRegistry("FSX")

var (
	ErrNotFound    = fsxErrors.Register("NOT_FOUND", errx.TypeNotFound, "File not found")
	ErrInvalidPath = fsxErrors.Register("INVALID_PATH", errx.TypeValidation, "Invalid file path")
	ErrIO          = fsxErrors.Register("IO", errx.TypeInternal, "File store operation failed")
)

func NotFound(p string) *errx.Error {
	return fsxErrors.New(ErrNotFound).WithDetail("path", p)
}

// IOError wraps a backend failure for op on p.
func IOError(op, p string, cause error) *errx.Error {
	return fsxErrors.NewWithCause(ErrIO, cause).WithDetail("op", op).WithDetail("path", p)
}

// Clean normalises p and rejects empty paths and ".." segments.
func Clean(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fsxErrors.New(ErrInvalidPath).WithDetail("path", p)
		}
	}
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if c == "" {
		return "", fsxErrors.New(ErrInvalidPath).WithDetail("path", p)
	}
	return c, nil
}
