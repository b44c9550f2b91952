package repository

import (
	"context"
	"database/sql"
	"time"

	"controlling_hottub/internal/models"

	"github.com/spf13/afero"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type JobRepo interface {
	Save(ctx context.Context, job models.Job) error
	Get(ctx context.Context, id string) (models.Job, bool, error)
	List(ctx context.Context) ([]models.Job, error)
	Delete(ctx context.Context, id string) error
}

type SkipRepo interface {
	SaveSkip(ctx context.Context, rec models.SkipRecord) error
	GetSkip(ctx context.Context, jobID string) (models.SkipRecord, bool, error)
	DeleteSkip(ctx context.Context, jobID string) error
}

type ControlStateRepo interface {
	Load(ctx context.Context) (models.ControlState, error)
	Save(ctx context.Context, st models.ControlState) error
	Clear(ctx context.Context) error
	TryLock() (func(), error)
}

type CharacteristicsRepo interface {
	Load(ctx context.Context) (models.Characteristics, bool, error)
	Save(ctx context.Context, c models.Characteristics) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.EquipmentEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.EquipmentEvent, error)
	Last(ctx context.Context, types ...string) (models.EquipmentEvent, bool, error)
}

type ReadingRepo interface {
	Append(ctx context.Context, r models.TemperatureReading) (int64, error)
	Latest(ctx context.Context) (models.TemperatureReading, bool, error)
	List(ctx context.Context, from, to time.Time) ([]models.TemperatureReading, error)
}

type Repository struct {
	Jobs            JobRepo
	Skips           SkipRepo
	ControlState    ControlStateRepo
	Characteristics CharacteristicsRepo
	EventRepo       EventRepo
	Readings        ReadingRepo
	Auth            Authorization
}

// NewRepository wires the sqlite tables and the file stores under jobsDir
// and stateDir.
func NewRepository(db *sql.DB, fs afero.Fs, jobsDir, stateDir string) *Repository {
	jobs := NewJobFiles(fs, jobsDir)
	return &Repository{
		Jobs:            jobs,
		Skips:           jobs,
		ControlState:    NewControlStateFile(fs, stateDir),
		Characteristics: NewCharacteristicsFile(fs, stateDir),
		EventRepo:       NewEventSQLite(db),
		Readings:        NewReadingSQLite(db),
		Auth:            NewOperatorSQLite(db),
	}
}
