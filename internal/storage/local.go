package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"citylink/internal/models"

	"github.com/google/uuid"
)

// URLPrefix is where the router mounts the upload directory.
const URLPrefix = "/uploads/"

type LocalStore struct {
	dir string
	now func() time.Time
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, now: time.Now}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(_ context.Context, u Upload) (models.Image, error) {
	ext, ok := extensionFor(u.ContentType)
	if !ok {
		return models.Image{}, ErrFileType
	}
	src, err := u.Open()
	if err != nil {
		return models.Image{}, err
	}
	defer src.Close()

	name := uuid.NewString() + ext
	full := filepath.Join(s.dir, name)
	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.Image{}, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return models.Image{}, err
	}

	return models.Image{
		Filename:     name,
		OriginalName: u.Filename,
		Path:         URLPrefix + name,
		Size:         n,
		UploadedAt:   s.now().UTC(),
	}, nil
}

// Delete removes the file behind p. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, p string) error {
	err := os.Remove(filepath.Join(s.dir, path.Base(p)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
