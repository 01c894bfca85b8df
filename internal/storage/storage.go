// Package storage persists uploaded report photos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"citylink/internal/config"
	"citylink/internal/models"
)

// Store saves and removes report images. Path in the returned Image is what
// clients use to fetch the file.
type Store interface {
	Save(ctx context.Context, u Upload) (models.Image, error)
	Delete(ctx context.Context, path string) error
}

// Upload is one incoming file, not yet persisted.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

var (
	ErrTooManyFiles = errors.New("too many files")
	ErrFileTooLarge = errors.New("file too large")
	ErrFileType     = errors.New("only image files are allowed")
)

// Policy limits what a single report may carry.
type Policy struct {
	MaxFiles int
	MaxBytes int64
}

// imageTypes maps accepted content types to the extension used on disk.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

func DefaultPolicy() Policy { return Policy{MaxFiles: 5, MaxBytes: 5 << 20} }

// Check validates every upload before anything is written.
func (p Policy) Check(files []Upload) error {
	if p.MaxFiles > 0 && len(files) > p.MaxFiles {
		return fmt.Errorf("%w: at most %d images per report", ErrTooManyFiles, p.MaxFiles)
	}
	for _, f := range files {
		if p.MaxBytes > 0 && f.Size > p.MaxBytes {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, f.Filename, p.MaxBytes)
		}
		if _, ok := extensionFor(f.ContentType); !ok {
			return fmt.Errorf("%w: %s", ErrFileType, f.Filename)
		}
	}
	return nil
}

func extensionFor(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := imageTypes[ct]
	return ext, ok
}

// New picks the backend named by cfg.Driver.
func New(ctx context.Context, cfg config.UploadConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
