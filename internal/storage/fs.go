package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "pbimirror/internal/errors"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FSWriter writes into a directory tree on the local filesystem.
type FSWriter struct {
	root string
}

// NewFSWriter roots a writer at an existing directory.
func NewFSWriter(root string) (*FSWriter, error) {
	if err := ValidateLocalBase(root); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to resolve local path", err).WithContext("path", root)
	}
	return &FSWriter{root: abs}, nil
}

// Root returns the absolute base directory
func (w *FSWriter) Root() string {
	return w.root
}

func (w *FSWriter) EnsureDir(_ context.Context, rel string) error {
	dir, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", dir)
	}
	return nil
}

// WriteFile creates or truncates the file and writes the whole body before closing it.
func (w *FSWriter) WriteFile(_ context.Context, rel string, data []byte) (int, error) {
	target, err := w.resolve(rel)
	if err != nil {
		return 0, err
	}
	if target == w.root {
		return 0, apperrors.NewStorageError("refusing to write over the local base", nil).WithContext("path", rel)
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return 0, apperrors.NewStorageError("failed to create directory", err).WithContext("path", filepath.Dir(target))
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to open file", err).WithContext("path", target)
	}
	n, err := f.Write(data)
	if err != nil {
		_ = f.Close()
		return n, apperrors.NewStorageError("failed to write file", err).WithContext("path", target)
	}
	if err := f.Close(); err != nil {
		return n, apperrors.NewStorageError("failed to close file", err).WithContext("path", target)
	}
	return n, nil
}

func (w *FSWriter) Location(rel string) string {
	target, err := w.resolve(rel)
	if err != nil {
		return filepath.Join(w.root, filepath.FromSlash(rel))
	}
	return target
}

// resolve maps rel onto the filesystem and rejects anything outside the root.
func (w *FSWriter) resolve(rel string) (string, error) {
	target := filepath.Join(w.root, filepath.FromSlash(rel))
	back, err := filepath.Rel(w.root, target)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", apperrors.NewStorageError("path escapes the local base", err).WithContext("path", rel)
	}
	return target, nil
}
