package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/newthinker/fastquant/internal/core"
)

// LocalFS implements Storage on a directory tree.
type LocalFS struct {
	basePath string
}

// NewLocalFS creates basePath if needed.
func NewLocalFS(basePath string) (*LocalFS, error) {
	if basePath == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive path cannot be empty"))
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating base path: %w", err))
	}
	return &LocalFS{basePath: basePath}, nil
}

func (l *LocalFS) fullPath(path string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(path))
}

func (l *LocalFS) Write(ctx context.Context, path string, data []byte) error {
	full := l.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating directories: %w", err))
	}
	// write-then-rename so readers never observe a partial object
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (l *LocalFS) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.fullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.WrapError(core.ErrResultNotFound, fmt.Errorf("%s", path))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return data, nil
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	paths := []string{}
	err := filepath.WalkDir(l.fullPath(prefix), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) == ".tmp" {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return paths, nil
}

func (l *LocalFS) Delete(ctx context.Context, path string) error {
	err := os.Remove(l.fullPath(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.fullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, core.WrapError(core.ErrStorageFailed, err)
	}
	return true, nil
}
