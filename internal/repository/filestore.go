package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// writeAtomic replaces path by writing a sibling temp file and renaming it,
// so readers never observe a torn record.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()[:8]+".tmp")
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// readRecord loads and decodes a record; found=false when the file is absent.
func readRecord(fs afero.Fs, path, kind string, v any) (bool, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := decodeRecord(kind, b, v); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

func writeRecord(fs afero.Fs, path, kind string, v any) error {
	b, err := encodeRecord(kind, v)
	if err != nil {
		return err
	}
	return writeAtomic(fs, path, b)
}

// removeIfExists deletes path, treating a missing file as success.
func removeIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
