package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"

	"go.uber.org/multierr"
)

// CheckScheduler arranges and clears the control loop's own continuation.
type CheckScheduler interface {
	ScheduleCheck(ctx context.Context, at time.Time) (models.Job, error)
	ClearChecks(ctx context.Context) (int, error)
}

type Sensor interface {
	CurrentReading(ctx context.Context) (models.TemperatureReading, error)
}

type Heater interface {
	HeaterOn(ctx context.Context) error
	HeaterOff(ctx context.Context) error
	IsHeaterOn(ctx context.Context) (bool, error)
}

// TargetTemperatureService is the self-rescheduling heat-to-target loop.
// Every cycle runs under the control state lock.
type TargetTemperatureService struct {
	state  repository.ControlStateRepo
	sensor Sensor
	heater Heater
	checks CheckScheduler
	cfg    config.ControlConfig
	log    *logger.Logger
	now    func() time.Time
	sleep  func(time.Duration)
	jitter func(lo, hi time.Duration) time.Duration
}

func NewTargetTemperatureService(state repository.ControlStateRepo, sensor Sensor, heater Heater, checks CheckScheduler, cfg config.ControlConfig, log *logger.Logger) *TargetTemperatureService {
	return &TargetTemperatureService{
		state:  state,
		sensor: sensor,
		heater: heater,
		checks: checks,
		cfg:    cfg,
		log:    logger.OrNop(log),
		now:    time.Now,
		sleep:  time.Sleep,
		jitter: randomBetween,
	}
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// Start activates the loop for target and runs the first check at once.
func (s *TargetTemperatureService) Start(ctx context.Context, targetF float64) (models.CheckResult, error) {
	if targetF < s.cfg.MinTargetF || targetF > s.cfg.MaxTargetF {
		return models.CheckResult{}, fmt.Errorf("%w: %.1f°F not within %.0f-%.0f°F",
			ErrTargetOutOfRange, targetF, s.cfg.MinTargetF, s.cfg.MaxTargetF)
	}

	release, err := s.lock()
	if err != nil {
		return models.CheckResult{}, err
	}
	st, err := s.state.Load(ctx)
	if err != nil {
		release()
		return models.CheckResult{}, err
	}
	if st.Active {
		release()
		return models.CheckResult{}, fmt.Errorf("%w: target %.1f°F", ErrAlreadyActive, st.TargetTempF)
	}
	now := s.now().UTC()
	err = s.state.Save(ctx, models.ControlState{Active: true, TargetTempF: targetF, StartedAt: now, UpdatedAt: now})
	release()
	if err != nil {
		return models.CheckResult{}, err
	}
	s.log.Infow("target temperature started", "target_f", targetF)

	return s.CheckAndAdjust(ctx)
}

// CheckAndAdjust runs one control cycle. When the lock stays busy after one
// retry the cycle is skipped rather than waited for.
func (s *TargetTemperatureService) CheckAndAdjust(ctx context.Context) (models.CheckResult, error) {
	release, err := s.lock()
	if errors.Is(err, ErrBusy) {
		s.log.Infow("control check skipped: lock busy")
		return models.CheckResult{Skipped: true}, nil
	}
	if err != nil {
		return models.CheckResult{}, err
	}
	defer release()

	st, err := s.state.Load(ctx)
	if err != nil {
		return models.CheckResult{}, err
	}
	if !st.Active {
		return models.CheckResult{}, nil
	}
	res := models.CheckResult{Active: true, TargetTempF: st.TargetTempF}

	reading, err := s.sensor.CurrentReading(ctx)
	if err != nil {
		// leave the heater alone; only keep the loop alive for the next reading
		res.Error = err.Error()
		next := s.nextCheckAt(s.now())
		if _, serr := s.checks.ScheduleCheck(ctx, next); serr != nil {
			err = multierr.Append(err, fmt.Errorf("schedule next check: %w", serr))
		} else {
			res.NextCheckAt = &next
		}
		s.log.Errorw("control check without reading; heater untouched", "err", err)
		return res, err
	}
	temp := reading.WaterTempF
	res.CurrentTempF = &temp

	if temp < st.TargetTempF-s.cfg.ToleranceF {
		return s.keepHeating(ctx, st, res)
	}
	return s.finish(ctx, res)
}

func (s *TargetTemperatureService) keepHeating(ctx context.Context, st models.ControlState, res models.CheckResult) (models.CheckResult, error) {
	res.Heating = true
	var errs error

	on, err := s.heater.IsHeaterOn(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	if err != nil || !on {
		if err := s.heater.HeaterOn(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	next := s.nextCheckAt(s.now())
	if _, err := s.checks.ScheduleCheck(ctx, next); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("schedule next check: %w", err))
	} else {
		res.NextCheckAt = &next
	}

	st.UpdatedAt = s.now().UTC()
	if err := s.state.Save(ctx, st); err != nil {
		errs = multierr.Append(errs, err)
	}

	s.log.Infow("heating toward target", "current_f", *res.CurrentTempF, "target_f", st.TargetTempF, "next_check", next)
	if errs != nil {
		res.Error = errs.Error()
		return res, errs
	}
	return res, nil
}

func (s *TargetTemperatureService) finish(ctx context.Context, res models.CheckResult) (models.CheckResult, error) {
	res.Active = false
	res.TargetReached = true
	var errs error

	on, err := s.heater.IsHeaterOn(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	if err != nil || on {
		if err := s.heater.HeaterOff(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if err := s.state.Clear(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.sweepChecks(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	s.log.Infow("target temperature reached", "current_f", *res.CurrentTempF, "target_f", res.TargetTempF)
	if errs != nil {
		res.Error = errs.Error()
		return res, errs
	}
	return res, nil
}

// Stop deactivates the loop and removes its pending checks. The heater is
// left as it is.
func (s *TargetTemperatureService) Stop(ctx context.Context) error {
	release, err := s.lock()
	if err != nil {
		return err
	}
	defer release()

	if err := s.state.Clear(ctx); err != nil {
		return err
	}
	if err := s.sweepChecks(ctx); err != nil {
		return err
	}
	s.log.Infow("target temperature stopped")
	return nil
}

// Status returns the persisted loop state.
func (s *TargetTemperatureService) Status(ctx context.Context) (models.ControlState, error) {
	return s.state.Load(ctx)
}

// sweepChecks clears pending checks, waits, and clears again to catch a
// check scheduled by a timer that fired in between.
func (s *TargetTemperatureService) sweepChecks(ctx context.Context) error {
	if _, err := s.checks.ClearChecks(ctx); err != nil {
		return err
	}
	s.sleep(s.cfg.SweepDelay)
	n, err := s.checks.ClearChecks(ctx)
	if n > 0 {
		s.log.Warnw("late control checks removed by sweep", "count", n)
	}
	return err
}

// nextCheckAt aligns to the next minute boundary plus the interval and keeps
// at least MinMargin ahead of now.
func (s *TargetTemperatureService) nextCheckAt(now time.Time) time.Time {
	interval := s.cfg.CheckInterval
	if interval < time.Minute {
		interval = time.Minute
	}
	next := now.Truncate(time.Minute).Add(interval)
	if next.Sub(now) < s.cfg.MinMargin {
		next = next.Add(interval)
	}
	return next
}

// lock takes the control state lock, retrying once after a random backoff.
func (s *TargetTemperatureService) lock() (func(), error) {
	release, err := s.state.TryLock()
	if errors.Is(err, repository.ErrLocked) {
		s.sleep(s.jitter(s.cfg.LockBackoffMin, s.cfg.LockBackoffMax))
		release, err = s.state.TryLock()
	}
	if errors.Is(err, repository.ErrLocked) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("lock control state: %w", err)
	}
	return release, nil
}
