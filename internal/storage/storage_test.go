package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newBucket(t *testing.T, max int64) *DiskBucket {
	t.Helper()
	b, err := NewDiskBucket(t.TempDir(), "/uploads", max)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestUploadImage(t *testing.T) {
	b := newBucket(t, 1<<20)
	ctx := context.Background()

	url, err := b.Upload(ctx, "projects", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "/uploads/projects/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url %q", url)
	}

	path := filepath.Join(b.Dir(), "projects", filepath.Base(url))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Fatal("stored bytes differ from upload")
	}

	if err := b.Remove(ctx, url); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected object removed, stat err %v", err)
	}
	if err := b.Remove(ctx, url); err != nil {
		t.Fatalf("removing a missing object should succeed, got %v", err)
	}
}

func TestUploadRejectsNonImages(t *testing.T) {
	b := newBucket(t, 1<<20)
	_, err := b.Upload(context.Background(), "projects", strings.NewReader("#!/bin/sh\necho hi\n"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	_, err = b.Upload(context.Background(), "projects", strings.NewReader(""))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for empty file, got %v", err)
	}
}

func TestUploadRejectsLargeFiles(t *testing.T) {
	b := newBucket(t, 64)
	body := append(append([]byte{}, pngHeader...), make([]byte, 128)...)
	_, err := b.Upload(context.Background(), "avatars", bytes.NewReader(body))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(b.Dir(), "avatars"))
	if len(entries) != 0 {
		t.Fatalf("partial upload left behind: %d files", len(entries))
	}
}

func TestUploadRejectsBadPrefix(t *testing.T) {
	b := newBucket(t, 1<<20)
	for _, prefix := range []string{"", "../etc", "a/../b", "/abs"} {
		if _, err := b.Upload(context.Background(), prefix, bytes.NewReader(pngHeader)); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("prefix %q: expected ErrInvalidPath, got %v", prefix, err)
		}
	}
	if err := b.Remove(context.Background(), "/uploads/../secret"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}
