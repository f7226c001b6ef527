package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path through a temp file in the same
// directory followed by a rename, so a reader polling the path never
// observes a partial artifact.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	name := f.Name()
	fail := func(e error) error {
		f.Close()
		_ = os.Remove(name)
		return e
	}
	if _, err := f.Write(data); err != nil {
		return fail(fmt.Errorf("write artifact: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync artifact: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, mode); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// WriteArtifact renders v as indented JSON and writes it atomically.
// Operator-facing state files (retention runs, abort records) go through
// this so they are always complete and always readable.
func WriteArtifact(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return WriteFileAtomic(path, append(data, '\n'), 0o600)
}
