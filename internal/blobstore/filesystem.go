package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"paperlock/internal/paperlock"
)

// FileSystemStore is a filesystem-based BlobStore. It stores blobs as files
// in a directory structure:
//
//	<root>/
//	  content/
//	    <ab>/
//	      <locator>   (ciphertext, named by SHA-256, fanned out by prefix)
type FileSystemStore struct {
	root       string
	contentDir string
}

// NewFileSystemStore creates a filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	contentDir := filepath.Join(root, "content")
	if err := os.MkdirAll(contentDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	return &FileSystemStore{root: root, contentDir: contentDir}, nil
}

// Put stores data under its content address.
// The operation is idempotent: storing the same bytes multiple times is safe.
func (s *FileSystemStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	locator := Locator(data)
	destPath := s.path(locator)

	if _, err := os.Stat(destPath); err == nil {
		return locator, nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := writeFile(destPath, data); err != nil {
		return "", err
	}
	return locator, nil
}

// Get reads the blob stored under locator.
func (s *FileSystemStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkLocator(locator); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(locator))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &paperlock.NotFoundError{Kind: "blob", ID: locator}
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// ValidateSetup verifies that the store directories are accessible.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	for _, dir := range []string{s.root, s.contentDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("blob store directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("blob store path is not a directory: %s", dir)
		}
	}
	return nil
}

func (s *FileSystemStore) path(locator string) string {
	return filepath.Join(s.contentDir, locator[:2], locator)
}

// writeFile writes data to destPath using atomic write (temp file + rename).
func writeFile(destPath string, data []byte) error {
	// Same directory so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ paperlock.BlobStore = (*FileSystemStore)(nil)
