package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "usermgmt/internal/errors"
)

const (
	// DefaultMaxImageBytes caps profile images at 2 MiB.
	DefaultMaxImageBytes int64 = 2 * 1024 * 1024
	// URLPrefix is where saved images are served from.
	URLPrefix = "/uploads/"

	imageField = "profile_image"
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Image is an uploaded profile picture held in memory.
type Image struct {
	Filename string
	Data     []byte
}

// ImageStore persists profile images keyed by user id.
type ImageStore interface {
	Validate(img *Image) error
	Save(ctx context.Context, userID uint, img *Image) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Ensure LocalImageStore implements ImageStore
var _ ImageStore = (*LocalImageStore)(nil)

// LocalImageStore writes images to a directory on local disk.
type LocalImageStore struct {
	dir      string
	maxBytes int64
}

// NewLocalImageStore creates dir if needed.
func NewLocalImageStore(dir string, maxBytes int64) (*LocalImageStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalImageStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory images are written to.
func (s *LocalImageStore) Dir() string {
	return s.dir
}

// MaxBytes returns the size cap.
func (s *LocalImageStore) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks extension, size and sniffed content type without touching disk.
func (s *LocalImageStore) Validate(img *Image) error {
	if img == nil || len(img.Data) == 0 {
		return apperrors.InvalidField(imageField, "file is empty")
	}
	want, ok := allowedExtensions[strings.ToLower(filepath.Ext(img.Filename))]
	if !ok {
		return apperrors.InvalidField(imageField, "only JPG and PNG files are allowed")
	}
	if int64(len(img.Data)) > s.maxBytes {
		return apperrors.InvalidField(imageField, fmt.Sprintf("file size must be at most %d bytes", s.maxBytes))
	}
	if !mimetype.Detect(img.Data).Is(want) {
		return apperrors.InvalidField(imageField, "file content does not match its extension")
	}
	return nil
}

// Save validates img and writes it as user_<id>_<name>, replacing any file of that name.
func (s *LocalImageStore) Save(ctx context.Context, userID uint, img *Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.Validate(img); err != nil {
		return "", err
	}

	name := fmt.Sprintf("user_%d_%s", userID, filepath.Base(img.Filename))
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod image: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return URLPrefix + name, nil
}

// Delete removes the file behind ref. A missing file is not an error.
func (s *LocalImageStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasPrefix(ref, URLPrefix) {
		return fmt.Errorf("not a stored image reference: %q", ref)
	}
	name := filepath.Base(strings.TrimPrefix(ref, URLPrefix))
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
