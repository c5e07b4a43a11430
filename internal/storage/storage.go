// Package storage keeps uploaded images and hands back the public URL they are
// served from.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidPath     = errors.New("invalid object path")
)

// sniffLen is how much of the upload mimetype needs to see.
const sniffLen = 3072

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var prefixRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(/[a-z0-9][a-z0-9_-]*)*$`)

// Bucket stores objects under a prefix and returns their public URL.
type Bucket interface {
	Upload(ctx context.Context, prefix string, r io.Reader) (string, error)
	Remove(ctx context.Context, publicURL string) error
}

// DiskBucket stores objects in a directory served by the HTTP engine.
type DiskBucket struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

// NewDiskBucket creates dir if needed. urlPrefix is where the engine serves it,
// e.g. "/uploads".
func NewDiskBucket(dir, urlPrefix string, maxBytes int64) (*DiskBucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskBucket{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
	}, nil
}

func (b *DiskBucket) Dir() string { return b.dir }

// Upload sniffs the content, rejects anything that is not an image, and writes
// it as <prefix>/<uuid><ext>.
func (b *DiskBucket) Upload(ctx context.Context, prefix string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !prefixRe.MatchString(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, prefix)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}

	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), allowedTypes...) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	name := uuid.NewString() + mt.Extension()
	dest := filepath.Join(b.dir, filepath.FromSlash(prefix), name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, b.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(dest)
		return "", fmt.Errorf("write object: %w", err)
	case closeErr != nil:
		os.Remove(dest)
		return "", fmt.Errorf("write object: %w", closeErr)
	case written > b.maxBytes:
		os.Remove(dest)
		return "", fmt.Errorf("%w: max %d bytes", ErrTooLarge, b.maxBytes)
	}

	return b.urlPrefix + "/" + prefix + "/" + name, nil
}

// Remove deletes an object by the URL Upload returned. Missing objects are not
// an error.
func (b *DiskBucket) Remove(ctx context.Context, publicURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, ok := strings.CutPrefix(publicURL, b.urlPrefix+"/")
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPath, publicURL)
	}
	dir, file := filepath.Split(filepath.FromSlash(rel))
	if !prefixRe.MatchString(strings.TrimSuffix(filepath.ToSlash(dir), "/")) || strings.Contains(file, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, publicURL)
	}
	err := os.Remove(filepath.Join(b.dir, dir, file))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
