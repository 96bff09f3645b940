// Package fileutil provides filesystem helpers for the token cache and key file.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// dirPermissions is used when a parent directory has to be created.
const dirPermissions = 0o700

// WriteAtomic writes data to path atomically with the provided permissions.
// The parent directory is created if missing. Data goes to a temp file in the
// same directory, which is fsynced and renamed over path, so readers only ever
// see the old or the new content.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path comes from config, not user input
		return fmt.Errorf("renaming temp file: %w", err)
	}

	syncDir(filepath.Dir(path))
	return nil
}

// WriteExclusive creates path with the given content, failing with an error
// matching fs.ErrExist if the file is already there. The content is written
// and synced to a temp file first and then hard linked into place, so path
// never exists half written. Used for one-time files such as the encryption
// key, where two writers must never both win.
func WriteExclusive(path string, data []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if err := os.Link(tmpPath, path); err != nil {
		return fmt.Errorf("linking %s into place: %w", filepath.Base(path), err)
	}

	syncDir(filepath.Dir(path))
	return nil
}

// writeTemp writes data to a fsynced temp file beside path, creating the
// directory if needed, and returns the temp file's name.
func writeTemp(path string, data []byte, perm os.FileMode) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	fail := func(step string, err error) (string, error) {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%s temp file: %w", step, err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		return fail("writing", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fail("setting permissions of", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fail("syncing", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	return tmpPath, nil
}

// syncDir makes a rename or link in dir durable, best effort.
func syncDir(dir string) {
	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from validated path
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}
}

// RemoveIfExists deletes path. A missing file is not an error.
func RemoveIfExists(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
