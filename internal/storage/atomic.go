package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AtomicWriter writes files through a temporary sibling and a rename, so a
// reader never observes a partially written artifact.
type AtomicWriter struct {
	perm os.FileMode
}

// NewAtomicWriter creates a new atomic writer
func NewAtomicWriter(perm os.FileMode) *AtomicWriter {
	if perm == 0 {
		perm = 0o644
	}
	return &AtomicWriter{perm: perm}
}

// WriteFile replaces filename with data atomically
func (w *AtomicWriter) WriteFile(filename string, data []byte) error {
	tempFile, err := w.writeTemp(filename, data)
	if err != nil {
		return err
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// CreateFile writes data to filename only if filename does not exist yet.
// It returns an error satisfying os.IsExist when the target is present.
func (w *AtomicWriter) CreateFile(filename string, data []byte) error {
	tempFile, err := w.writeTemp(filename, data)
	if err != nil {
		return err
	}
	defer os.Remove(tempFile)

	return linkNoClobber(tempFile, filename)
}

// writeTemp writes data next to filename and verifies it
func (w *AtomicWriter) writeTemp(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := filename + ".tmp." + generateTempSuffix()

	f, err := os.OpenFile(tempFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, w.perm)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := verifyFileIntegrity(tempFile, data); err != nil {
		os.Remove(tempFile)
		return "", err
	}

	return tempFile, nil
}

// linkNoClobber makes dst refer to src without ever replacing an existing dst.
// Hard links fail with EEXIST atomically; filesystems without hard links fall
// back to a stat-then-rename, which is safe for a single writer.
func linkNoClobber(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || os.IsExist(err) {
		return err
	}

	if _, statErr := os.Lstat(dst); statErr == nil {
		return &os.LinkError{Op: "link", Old: src, New: dst, Err: os.ErrExist}
	}
	return os.Rename(src, dst)
}

// verifyFileIntegrity verifies that written data matches expected data
func verifyFileIntegrity(filename string, expectedData []byte) error {
	actualData, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if sha256.Sum256(expectedData) != sha256.Sum256(actualData) {
		return fmt.Errorf("file integrity check failed: hash mismatch")
	}

	return nil
}

// checksum returns the hex sha256 of data
func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// generateTempSuffix generates a unique suffix for temporary files
func generateTempSuffix() string {
	timestamp := time.Now().UnixNano()
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", timestamp, os.Getpid())))
	return hex.EncodeToString(hash[:4])
}
