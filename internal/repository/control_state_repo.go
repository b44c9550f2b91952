package repository

import (
	"context"
	"path/filepath"

	"controlling_hottub/internal/models"

	"github.com/spf13/afero"
)

const (
	controlStateFile = "target-temperature.json"
	controlLockFile  = "target-temperature.lock"
)

// ControlStateFile persists the target temperature loop state. The lock file
// lives next to it so the lock is scoped to the state directory.
type ControlStateFile struct {
	fs   afero.Fs
	path string
	lock *FileLock
}

func NewControlStateFile(fs afero.Fs, stateDir string) *ControlStateFile {
	return &ControlStateFile{
		fs:   fs,
		path: filepath.Join(stateDir, controlStateFile),
		lock: NewFileLock(filepath.Join(stateDir, controlLockFile)),
	}
}

var _ ControlStateRepo = (*ControlStateFile)(nil)

// Load returns the state; an absent file is an inactive loop.
func (r *ControlStateFile) Load(ctx context.Context) (models.ControlState, error) {
	var st models.ControlState
	if _, err := readRecord(r.fs, r.path, kindControlState, &st); err != nil {
		return models.ControlState{}, err
	}
	return st, nil
}

// Save atomically replaces the state file.
func (r *ControlStateFile) Save(ctx context.Context, st models.ControlState) error {
	return writeRecord(r.fs, r.path, kindControlState, st)
}

// Clear deletes the state file.
func (r *ControlStateFile) Clear(ctx context.Context) error {
	return removeIfExists(r.fs, r.path)
}

// TryLock takes the state directory lock without blocking.
func (r *ControlStateFile) TryLock() (func(), error) {
	return r.lock.TryLock()
}
