package fsxlocal

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/fsx"
)

// LocalFileSystem stores files under a root directory on disk.
type LocalFileSystem struct {
	root string
}

var _ fsx.FileSystem = (*LocalFileSystem)(nil)

// New creates root when missing.
func New(root string) (*LocalFileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fsx.IOError("resolve", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fsx.IOError("mkdir", root, err)
	}
	return &LocalFileSystem{root: abs}, nil
}

func (l *LocalFileSystem) Root() string { return l.root }

func (l *LocalFileSystem) full(p string) (string, string, error) {
	clean, err := fsx.Clean(p)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *LocalFileSystem) ReadFile(_ context.Context, p string) ([]byte, error) {
	clean, full, err := l.full(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fsx.NotFound(clean)
	}
	if err != nil {
		return nil, fsx.IOError("read", clean, err)
	}
	return data, nil
}

func (l *LocalFileSystem) Exists(_ context.Context, p string) (bool, error) {
	clean, full, err := l.full(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fsx.IOError("stat", clean, err)
	}
	return true, nil
}

// WriteFile writes through a temp file and rename so readers never see a
// partial file. contentType is ignored on disk.
func (l *LocalFileSystem) WriteFile(_ context.Context, p string, data []byte, _ string) error {
	clean, full, err := l.full(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fsx.IOError("mkdir", clean, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".fsx-*")
	if err != nil {
		return fsx.IOError("write", clean, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fsx.IOError("write", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return fsx.IOError("write", clean, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fsx.IOError("rename", clean, err)
	}
	return nil
}

func (l *LocalFileSystem) DeleteFile(_ context.Context, p string) error {
	clean, full, err := l.full(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fsx.IOError("delete", clean, err)
	}
	return nil
}

func (l *LocalFileSystem) List(_ context.Context, prefix string) ([]fsx.FileInfo, error) {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	start := l.root
	if prefix != "" {
		clean, full, err := l.full(prefix)
		if err != nil {
			return nil, err
		}
		prefix, start = clean, full
	}

	var out []fsx.FileInfo
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".fsx-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		out = append(out, fsx.FileInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fsx.IOError("list", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
