// Package local provides a filestore.Store over a directory on disk.
package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore"
)

// Store keeps each object as a file under a root directory. Keys may
// contain '/' to form subdirectories.
type Store struct {
	root string
}

// New returns a Store rooted at cfg.Dir, creating the directory if needed.
func New(cfg *filestore.Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "local store needs a directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, mapError(err, "failed to create store directory")
	}
	return &Store{root: cfg.Dir}, nil
}

// Ping checks the root directory is still there.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !info.IsDir() {
		return errs.Newf(errs.ErrKindInvalidInput, "%s is not a directory", s.root)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mapError(err, "failed to read "+key)
	}
	return data, nil
}

// Put writes through a temporary file so readers never see a partial object.
func (s *Store) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mapError(err, "failed to create directory for "+key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return mapError(err, "failed to write "+key)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return mapError(err, "failed to write "+key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return mapError(err, "failed to write "+key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return mapError(err, "failed to write "+key)
	}
	return nil
}

func (s *Store) Stat(_ context.Context, key string) (*filestore.ObjectInfo, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, mapError(err, "failed to stat "+key)
	}
	return &filestore.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]filestore.ObjectInfo, error) {
	results := make([]filestore.ObjectInfo, 0)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		results = append(results, filestore.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

// path maps key to a file under root, rejecting keys that would escape it.
func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errs.Newf(errs.ErrKindInvalidInput, "invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func mapError(err error, msg string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
}

var _ filestore.Store = (*Store)(nil)
