// Package storage persists mirrored files. Paths handed to a Writer are
// slash-separated and relative to the writer's root.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
)

// Writer is the sink the walker writes folders and files into.
type Writer interface {
	// EnsureDir creates rel if it does not exist. An existing directory is not an error.
	EnsureDir(ctx context.Context, rel string) error
	// WriteFile stores data at rel, replacing any previous content, and reports bytes written.
	WriteFile(ctx context.Context, rel string, data []byte) (int, error)
	// Location describes where rel ends up, for logs and summaries.
	Location(rel string) string
}

// ValidateLocalBase checks that path exists and is a directory.
func ValidateLocalBase(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewValidationError("local path does not exist", err).WithContext("path", path)
	}
	if !info.IsDir() {
		return apperrors.NewValidationError("local path is not a directory", nil).WithContext("path", path)
	}
	return nil
}

// New creates the Writer selected by cfg.Kind. localBase roots the filesystem
// writer and is unused for object storage.
func New(ctx context.Context, cfg config.StorageConfig, localBase string, logger *slog.Logger) (Writer, error) {
	switch cfg.Kind {
	case config.StorageKindS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Creating S3 storage writer",
			slog.String("bucket", cfg.S3.Bucket),
			slog.String("prefix", cfg.S3.Prefix),
			slog.String("region", cfg.S3.Region))
		return NewS3Writer(cfg.S3, client), nil

	case config.StorageKindFS, "":
		logger.InfoContext(ctx, "Creating filesystem storage writer", slog.String("path", localBase))
		return NewFSWriter(localBase)

	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported storage kind: %s", cfg.Kind), nil)
	}
}
