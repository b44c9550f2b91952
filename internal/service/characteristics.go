package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/schedule"
	"controlling_hottub/internal/thermal"
	"controlling_hottub/internal/timezone"

	"github.com/spf13/afero"
)

// regenerateTag marks the single daily characteristics entry.
var regenerateTag = crontab.Tag{JobID: "characteristics", Action: "regenerate", Kind: crontab.KindDaily}

type CharacteristicsDeps struct {
	Repo     repository.CharacteristicsRepo
	Events   repository.EventRepo
	Readings repository.ReadingRepo
	Fs       afero.Fs
	Thermal  config.ThermalConfig
	Timezone *timezone.Resolver
	Cron     Crontab
	Commands schedule.CommandBuilder
	// RegenerateAt is the daily HH:MM±HH:MM regeneration time.
	RegenerateAt string
	Log          *logger.Logger
}

// CharacteristicsService fits and stores the tub's thermal model.
type CharacteristicsService struct {
	repo         repository.CharacteristicsRepo
	events       repository.EventRepo
	readings     repository.ReadingRepo
	fs           afero.Fs
	cfg          config.ThermalConfig
	tz           *timezone.Resolver
	cron         Crontab
	compiler     *schedule.Compiler
	commands     schedule.CommandBuilder
	regenerateAt string
	log          *logger.Logger
	now          func() time.Time
}

func NewCharacteristicsService(d CharacteristicsDeps) *CharacteristicsService {
	fs := d.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &CharacteristicsService{
		repo:         d.Repo,
		events:       d.Events,
		readings:     d.Readings,
		fs:           fs,
		cfg:          d.Thermal,
		tz:           d.Timezone,
		cron:         d.Cron,
		compiler:     schedule.NewCompiler(d.Timezone, d.Cron),
		commands:     d.Commands,
		regenerateAt: d.RegenerateAt,
		log:          logger.OrNop(d.Log),
		now:          time.Now,
	}
}

// ThermalOptions returns the analysis options in the host frame.
func ThermalOptions(cfg config.ThermalConfig, tz *timezone.Resolver) thermal.Options {
	o := thermal.DefaultOptions()
	o.DayStartHour = cfg.DayStartHour
	o.NightStartHour = cfg.NightStartHour
	o.Location = tz.Location()
	return o
}

// GenerateCharacteristics fits the model from the configured JSON-lines logs
// when both exist, otherwise from the stored readings and events, and
// persists the result.
func (s *CharacteristicsService) GenerateCharacteristics(ctx context.Context, p GenerateParams) (models.Characteristics, error) {
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return models.Characteristics{}, errInvalidTimeRange
	}
	switches, readings, source, err := s.history(ctx, p)
	if err != nil {
		return models.Characteristics{}, err
	}

	c, err := thermal.Estimate(switches, readings, p.From, p.To, ThermalOptions(s.cfg, s.tz))
	if err != nil {
		if errors.Is(err, thermal.ErrNoSessions) {
			return models.Characteristics{}, fmt.Errorf("%w: %v", ErrNoCharacteristics, err)
		}
		return models.Characteristics{}, err
	}
	c.GeneratedAt = s.now().UTC()
	if err := s.repo.Save(ctx, c); err != nil {
		return models.Characteristics{}, err
	}
	s.log.Infow("characteristics generated", "source", source, "sessions", c.SessionsAnalyzed,
		"velocity_f_per_min", c.HeatingVelocityFPerMin, "lag_min", c.StartupLagMinutes, "cooling_segments", c.CoolingSegments)
	return c, nil
}

func (s *CharacteristicsService) history(ctx context.Context, p GenerateParams) ([]thermal.Switch, []models.TemperatureReading, string, error) {
	if s.logsAvailable() {
		switches, readings, err := s.fromLogs()
		return switches, readings, "logs", err
	}

	events, err := s.events.List(ctx, p.From, p.To, "")
	if err != nil {
		return nil, nil, "", err
	}
	readings, err := s.readings.List(ctx, p.From, p.To)
	if err != nil {
		return nil, nil, "", err
	}
	return thermal.SwitchesFromEvents(events), readings, "database", nil
}

func (s *CharacteristicsService) logsAvailable() bool {
	if s.cfg.TemperatureLog == "" || s.cfg.EquipmentLog == "" {
		return false
	}
	for _, p := range []string{s.cfg.TemperatureLog, s.cfg.EquipmentLog} {
		if ok, _ := afero.Exists(s.fs, p); !ok {
			return false
		}
	}
	return true
}

func (s *CharacteristicsService) fromLogs() ([]thermal.Switch, []models.TemperatureReading, error) {
	tf, err := s.fs.Open(s.cfg.TemperatureLog)
	if err != nil {
		return nil, nil, err
	}
	defer tf.Close()
	readings, skippedR, err := thermal.ParseTemperatureLog(tf)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", s.cfg.TemperatureLog, err)
	}

	ef, err := s.fs.Open(s.cfg.EquipmentLog)
	if err != nil {
		return nil, nil, err
	}
	defer ef.Close()
	switches, skippedE, err := thermal.ParseEquipmentLog(ef)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", s.cfg.EquipmentLog, err)
	}

	if skippedR+skippedE > 0 {
		s.log.Warnw("malformed log lines skipped", "temperature", skippedR, "equipment", skippedE)
	}
	return switches, readings, nil
}

// GetCharacteristics returns the stored model.
func (s *CharacteristicsService) GetCharacteristics(ctx context.Context) (models.Characteristics, error) {
	c, found, err := s.repo.Load(ctx)
	if err != nil {
		return models.Characteristics{}, err
	}
	if !found {
		return models.Characteristics{}, ErrNoCharacteristics
	}
	return c, nil
}

// EnsureRegenerationCron keeps exactly one daily regeneration entry.
func (s *CharacteristicsService) EnsureRegenerationCron(ctx context.Context) (bool, error) {
	expr, err := s.compiler.DailyExpressionFor(s.regenerateAt, false)
	if err != nil {
		return false, fmt.Errorf("%w: regenerate_at: %v", ErrInvalidTime, err)
	}
	line, err := s.compiler.Line(expr, s.commands.Subcommand("characteristics"), regenerateTag)
	if err != nil {
		return false, err
	}
	changed, err := s.cron.EnsureEntry(ctx, regenerateTag.String(), line)
	if err != nil {
		return false, err
	}
	if changed {
		s.log.Infow("characteristics regeneration entry installed", "schedule", expr)
	}
	return changed, nil
}
