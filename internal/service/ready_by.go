package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/thermal"
	"controlling_hottub/internal/timezone"
)

// ReadyByScheduler is the part of the job registry the predictive scheduler
// writes through.
type ReadyByScheduler interface {
	ScheduleReadyBy(ctx context.Context, readyBy, wake string, targetF float64) (models.Job, error)
	ScheduleJob(ctx context.Context, req JobRequest) (models.Job, error)
}

type targetStarter interface {
	Start(ctx context.Context, targetF float64) (models.CheckResult, error)
}

// ReadyByService schedules heating backward from a "ready by" time.
type ReadyByService struct {
	jobs    ReadyByScheduler
	target  targetStarter
	sensor  Sensor
	chars   repository.CharacteristicsRepo
	cfg     config.ReadyByConfig
	control config.ControlConfig
	thermal thermal.Options
	log     *logger.Logger
	now     func() time.Time
}

func NewReadyByService(jobs ReadyByScheduler, target targetStarter, sensor Sensor, chars repository.CharacteristicsRepo,
	cfg config.ReadyByConfig, control config.ControlConfig, opts thermal.Options, log *logger.Logger) *ReadyByService {
	return &ReadyByService{
		jobs:    jobs,
		target:  target,
		sensor:  sensor,
		chars:   chars,
		cfg:     cfg,
		control: control,
		thermal: opts,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// CreateReadyBySchedule installs a daily job listed at readyBy that wakes
// early enough to heat from the cold-start floor in the worst case.
func (s *ReadyByService) CreateReadyBySchedule(ctx context.Context, readyBy string, targetF float64) (models.Job, error) {
	if targetF < s.control.MinTargetF || targetF > s.control.MaxTargetF {
		return models.Job{}, fmt.Errorf("%w: %.1f°F not within %.0f-%.0f°F",
			ErrTargetOutOfRange, targetF, s.control.MinTargetF, s.control.MaxTargetF)
	}
	ready, err := timezone.ParseOffsetTime(readyBy, time.UTC)
	if err != nil {
		return models.Job{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	zone, _ := timezone.OffsetOf(readyBy)

	velocity, lag := s.model(ctx)
	worst := s.worstCase(targetF, velocity, lag)
	if worst >= 24*time.Hour {
		return models.Job{}, fmt.Errorf("%w: worst-case heat time %s exceeds a day", ErrInvalidTime, worst)
	}
	wake := timezone.FormatOffsetTime(ready.Add(-worst).In(zone))

	job, err := s.jobs.ScheduleReadyBy(ctx, timezone.FormatOffsetTime(ready.In(zone)), wake, targetF)
	if err != nil {
		return models.Job{}, err
	}
	s.log.Infow("ready-by schedule created", "job_id", job.ID, "ready_by", readyBy, "wake", wake, "worst_case", worst)
	return job, nil
}

// worstCase is lag + time to heat from the cold-start floor + margin,
// rounded up to whole minutes.
func (s *ReadyByService) worstCase(targetF, velocity, lag float64) time.Duration {
	minutes := thermal.HeatMinutes(targetF-s.cfg.ColdStartFloorF, velocity, lag)
	if minutes == 0 {
		minutes = lag
	}
	return time.Duration(math.Ceil(minutes))*time.Minute + s.cfg.SafetyMargin
}

// model returns velocity and lag from the fitted characteristics, or the
// configured defaults.
func (s *ReadyByService) model(ctx context.Context) (velocity, lag float64) {
	velocity, lag = s.cfg.DefaultVelocityFPerMin, s.cfg.DefaultStartupLagMin
	c, found, err := s.chars.Load(ctx)
	if err != nil {
		s.log.Warnw("characteristics unreadable; using defaults", "err", err)
		return velocity, lag
	}
	if found && c.HeatingVelocityFPerMin > 0 {
		return c.HeatingVelocityFPerMin, c.StartupLagMinutes
	}
	return velocity, lag
}

// HandleWakeUp decides, at wake time, whether heating must start now, at a
// computed time, or not at all. Missing inputs fall back to starting now.
func (s *ReadyByService) HandleWakeUp(ctx context.Context, readyBy string, targetF float64) (WakeUpResult, error) {
	now := s.now()
	readyAt, err := nextOccurrence(readyBy, now)
	if err != nil {
		return WakeUpResult{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	res := WakeUpResult{ReadyAt: readyAt, TargetTempF: targetF}

	reading, err := s.sensor.CurrentReading(ctx)
	if err != nil {
		return s.startNow(ctx, res, "no current reading: "+err.Error())
	}
	current := reading.WaterTempF
	res.CurrentTempF = &current
	res.AmbientTempF = reading.AmbientTempF
	if current >= targetF {
		res.Decision = DecisionAlreadyHot
		return res, nil
	}
	if reading.AmbientTempF == nil {
		return s.startNow(ctx, res, "no ambient reading")
	}

	c, found, err := s.chars.Load(ctx)
	if err != nil || !found || c.HeatingVelocityFPerMin <= 0 {
		return s.startNow(ctx, res, "no fitted model")
	}
	k, ok := thermal.CoolingK(c, now, readyAt, s.thermal)
	if !ok {
		return s.startNow(ctx, res, "no cooling coefficient")
	}

	remaining := readyAt.Sub(now).Minutes()
	projected := thermal.Round(thermal.ProjectCooling(current, *reading.AmbientTempF, k, remaining))
	res.ProjectedTempF = &projected
	if projected >= targetF {
		res.Decision = DecisionStaysWarm
		return res, nil
	}

	need := thermal.HeatMinutes(targetF-projected, c.HeatingVelocityFPerMin, c.StartupLagMinutes)
	startAt := readyAt.Add(-time.Duration(math.Ceil(need)) * time.Minute).Truncate(time.Minute)
	if !startAt.After(now.Add(s.control.MinMargin)) {
		return s.startNow(ctx, res, "computed start already passed")
	}

	job, err := s.jobs.ScheduleJob(ctx, JobRequest{
		Action: models.ActionHeatToTarget,
		Time:   startAt.Format(time.RFC3339),
		Params: &models.JobParams{TargetTempF: &targetF},
	})
	if err != nil {
		s.log.Errorw("precise start not scheduled; starting now", "err", err)
		return s.startNow(ctx, res, "scheduling failed: "+err.Error())
	}
	res.Decision = DecisionScheduled
	res.StartAt = &startAt
	res.JobID = job.ID
	s.log.Infow("ready-by start scheduled", "job_id", job.ID, "start_at", startAt, "projected_f", projected)
	return res, nil
}

func (s *ReadyByService) startNow(ctx context.Context, res WakeUpResult, reason string) (WakeUpResult, error) {
	res.Decision = DecisionStartNow
	res.Reason = reason
	s.log.Infow("ready-by starting heat now", "reason", reason, "target_f", res.TargetTempF)
	if _, err := s.target.Start(ctx, res.TargetTempF); err != nil && !errors.Is(err, ErrAlreadyActive) {
		return res, err
	}
	return res, nil
}

// nextOccurrence resolves an "HH:MM±HH:MM" time to the first instant after now.
func nextOccurrence(offsetTime string, now time.Time) (time.Time, error) {
	hour, minute, err := timezone.ClockOf(offsetTime)
	if err != nil {
		return time.Time{}, err
	}
	zone, err := timezone.OffsetOf(offsetTime)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(zone)
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, zone)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}
