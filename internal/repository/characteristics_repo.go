package repository

import (
	"context"
	"path/filepath"

	"controlling_hottub/internal/models"

	"github.com/spf13/afero"
)

const characteristicsFile = "heating-characteristics.json"

// CharacteristicsFile stores the latest fitted thermal model.
type CharacteristicsFile struct {
	fs   afero.Fs
	path string
}

func NewCharacteristicsFile(fs afero.Fs, stateDir string) *CharacteristicsFile {
	return &CharacteristicsFile{fs: fs, path: filepath.Join(stateDir, characteristicsFile)}
}

var _ CharacteristicsRepo = (*CharacteristicsFile)(nil)

func (r *CharacteristicsFile) Load(ctx context.Context) (models.Characteristics, bool, error) {
	var c models.Characteristics
	found, err := readRecord(r.fs, r.path, kindCharacteristics, &c)
	return c, found, err
}

func (r *CharacteristicsFile) Save(ctx context.Context, c models.Characteristics) error {
	return writeRecord(r.fs, r.path, kindCharacteristics, c)
}
