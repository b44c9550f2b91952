package service

import (
	"context"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/schedule"
	"controlling_hottub/internal/timezone"

	"github.com/spf13/afero"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Jobs is the job registry as seen by API callers.
type Jobs interface {
	ScheduleJob(ctx context.Context, req JobRequest) (models.Job, error)
	ListJobs(ctx context.Context) ([]models.JobView, error)
	CancelJob(ctx context.Context, id string) error
	SkipNext(ctx context.Context, id string) (models.SkipRecord, error)
	UnskipNext(ctx context.Context, id string) error
	CleanupOrphans(ctx context.Context, minAge time.Duration) ([]string, error)
}

// Runner executes fired jobs.
type Runner interface {
	Fire(ctx context.Context, id string) (FireResult, error)
}

// TargetTemperature exposes the heat-to-target control loop.
type TargetTemperature interface {
	Start(ctx context.Context, targetF float64) (models.CheckResult, error)
	CheckAndAdjust(ctx context.Context) (models.CheckResult, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) (models.ControlState, error)
}

type ReadyBy interface {
	CreateReadyBySchedule(ctx context.Context, readyBy string, targetF float64) (models.Job, error)
	HandleWakeUp(ctx context.Context, readyBy string, targetF float64) (WakeUpResult, error)
}

type Characteristics interface {
	GenerateCharacteristics(ctx context.Context, p GenerateParams) (models.Characteristics, error)
	GetCharacteristics(ctx context.Context) (models.Characteristics, error)
	EnsureRegenerationCron(ctx context.Context) (bool, error)
}

type Readings interface {
	RecordReading(ctx context.Context, r models.TemperatureReading) (models.TemperatureReading, error)
	LatestReading(ctx context.Context) (models.TemperatureReading, error)
	CurrentReading(ctx context.Context) (models.TemperatureReading, error)
}

// Equipment exposes manual actuation and the derived heater state.
type Equipment interface {
	HeaterOn(ctx context.Context) error
	HeaterOff(ctx context.Context) error
	RunPump(ctx context.Context) error
	IsHeaterOn(ctx context.Context) (bool, error)
}

// Monitoring exposes the read-only tub status.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.TubStatus, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.EquipmentEvent, error)
}

// Simulator feeds synthetic readings on a dry-run install.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Jobs
	Runner
	TargetTemperature
	ReadyBy
	Characteristics
	Readings
	Equipment
	Monitoring
	EventLog
	Simulator
	Authorization
}

// Deps are the collaborators NewService wires the services from.
type Deps struct {
	Repos    *repository.Repository
	Config   *config.Config
	Timezone *timezone.Resolver
	Cron     Crontab
	Trigger  Trigger
	Monitor  Monitor // nil disables job monitoring
	Commands schedule.CommandBuilder
	Fs       afero.Fs
	Log      *logger.Logger
}

// NewService wires the repository layer and outbound clients into concrete
// services.
func NewService(d Deps) *Service {
	cfg := d.Config
	repos := d.Repos
	log := logger.OrNop(d.Log)

	equipment := NewEquipmentService(d.Trigger, repos.EventRepo, cfg.Equipment, log)
	readings := NewReadingService(repos.Readings, cfg.Sensor.MaxAge)
	jobs := NewJobService(JobServiceDeps{
		Jobs:       repos.Jobs,
		Skips:      repos.Skips,
		Cron:       d.Cron,
		Timezone:   d.Timezone,
		Commands:   d.Commands,
		Monitor:    d.Monitor,
		Grace:      cfg.Monitor.Grace,
		MinTargetF: cfg.Control.MinTargetF,
		MaxTargetF: cfg.Control.MaxTargetF,
		Endpoints:  equipment.EndpointFor,
		Log:        log,
	})
	target := NewTargetTemperatureService(repos.ControlState, readings, equipment, jobs, cfg.Control, log)
	readyBy := NewReadyByService(jobs, target, readings, repos.Characteristics,
		cfg.ReadyBy, cfg.Control, ThermalOptions(cfg.Thermal, d.Timezone), log)

	return &Service{
		Jobs: jobs,
		Runner: NewJobRunner(RunnerDeps{
			Jobs:      repos.Jobs,
			Skips:     repos.Skips,
			Cron:      d.Cron,
			Equipment: equipment,
			Target:    target,
			ReadyBy:   readyBy,
			Monitor:   d.Monitor,
			Timezone:  d.Timezone,
			Log:       log,
		}),
		TargetTemperature: target,
		ReadyBy:           readyBy,
		Characteristics: NewCharacteristicsService(CharacteristicsDeps{
			Repo:         repos.Characteristics,
			Events:       repos.EventRepo,
			Readings:     repos.Readings,
			Fs:           d.Fs,
			Thermal:      cfg.Thermal,
			Timezone:     d.Timezone,
			Cron:         d.Cron,
			Commands:     d.Commands,
			RegenerateAt: cfg.Cron.RegenerateAt,
			Log:          log,
		}),
		Readings:      readings,
		Equipment:     equipment,
		Monitoring:    NewMonitoringService(repos.ControlState, equipment, readings),
		EventLog:      NewEventLogService(repos.EventRepo),
		Simulator:     NewSimulatorService(repos.Readings, equipment, cfg.Simulator, log),
		Authorization: NewAuthService(repos.Auth, cfg.Auth),
	}
}
