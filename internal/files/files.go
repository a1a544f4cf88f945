// Package files stores uploaded product images on local disk.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "teslo/internal/errors"
	"teslo/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotImage      = apperrors.Public(apperrors.ErrInvalidInput, "Make sure that the file is an image")
	ErrImageNotFound = apperrors.Public(apperrors.ErrInvalidInput, "Image not found")
	ErrTooLarge      = apperrors.Public(apperrors.ErrInvalidInput, "File is too large")
)

// Accepted mime subtypes.
var validExtensions = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
}

// Extension returns the file extension for an image mime type such as
// "image/png". The second result is false for anything that is not accepted.
func Extension(mimeType string) (string, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok || !validExtensions[sub] {
		return "", false
	}
	return sub, true
}

// Uploads is a directory of product images served back under HostAPI.
type Uploads struct {
	dir      string
	hostAPI  string
	maxBytes int64
	log      *zap.Logger
}

func NewUploads(dir, hostAPI string, maxBytes int64) *Uploads {
	return &Uploads{
		dir:      dir,
		hostAPI:  strings.TrimRight(hostAPI, "/"),
		maxBytes: maxBytes,
		log:      logger.Named("files"),
	}
}

// Init creates the upload directory if it doesn't exist.
func (u *Uploads) Init() error {
	return os.MkdirAll(u.dir, 0755)
}

// Save stores r under a fresh <uuid>.<ext> name and returns that name.
func (u *Uploads) Save(r io.Reader, mimeType string) (string, error) {
	ext, ok := Extension(mimeType)
	if !ok {
		return "", ErrNotImage
	}
	if err := u.Init(); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + "." + ext
	path := filepath.Join(u.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	src := r
	if u.maxBytes > 0 {
		src = io.LimitReader(r, u.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err == nil && u.maxBytes > 0 && n > u.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path) // Clean up partial file
		return "", err
	}

	u.log.Info("image stored", zap.String("file", name), zap.Int64("bytes", n))
	return name, nil
}

// URL is the public address of a stored image.
func (u *Uploads) URL(name string) string {
	return u.hostAPI + "/files/product/" + name
}

// Path resolves a stored image name to a file on disk. Names that would
// escape the upload directory are reported as not found.
func (u *Uploads) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrImageNotFound
	}
	path := filepath.Join(u.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", ErrImageNotFound
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
