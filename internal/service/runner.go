package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/schedule"
	"controlling_hottub/internal/timezone"
)

// Actuator drives the equipment actions a job can fire.
type Actuator interface {
	HeaterOn(ctx context.Context) error
	HeaterOff(ctx context.Context) error
	RunPump(ctx context.Context) error
}

type targetLoop interface {
	Start(ctx context.Context, targetF float64) (models.CheckResult, error)
	CheckAndAdjust(ctx context.Context) (models.CheckResult, error)
}

type wakeUpHandler interface {
	HandleWakeUp(ctx context.Context, readyBy string, targetF float64) (WakeUpResult, error)
}

type RunnerDeps struct {
	Jobs      repository.JobRepo
	Skips     repository.SkipRepo
	Cron      Crontab
	Equipment Actuator
	Target    targetLoop
	ReadyBy   wakeUpHandler
	Monitor   Monitor // nil disables pings
	Timezone  *timezone.Resolver
	Log       *logger.Logger
}

// JobRunner executes a job when its crontab entry fires.
type JobRunner struct {
	jobs      repository.JobRepo
	skips     repository.SkipRepo
	cron      Crontab
	equipment Actuator
	target    targetLoop
	readyBy   wakeUpHandler
	monitor   Monitor
	tz        *timezone.Resolver
	log       *logger.Logger
	now       func() time.Time
}

func NewJobRunner(d RunnerDeps) *JobRunner {
	return &JobRunner{
		jobs:      d.Jobs,
		skips:     d.Skips,
		cron:      d.Cron,
		equipment: d.Equipment,
		target:    d.Target,
		readyBy:   d.ReadyBy,
		monitor:   d.Monitor,
		tz:        d.Timezone,
		log:       logger.OrNop(d.Log),
		now:       time.Now,
	}
}

// Fire runs job id. One-off jobs remove their own entry whatever the
// outcome and drop their record only on success.
func (r *JobRunner) Fire(ctx context.Context, id string) (FireResult, error) {
	if !schedule.ValidJobID(id) {
		return FireResult{}, fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	job, found, err := r.jobs.Get(ctx, id)
	if err != nil {
		return FireResult{}, err
	}
	if !found {
		// a timer without a record is stale; make sure it cannot fire again
		if n, rmErr := r.cron.RemoveByPattern(ctx, crontab.JobPattern(id)); rmErr != nil {
			r.log.Warnw("stale entry not removed", "job_id", id, "err", rmErr)
		} else if n > 0 {
			r.log.Warnw("removed entry of missing job", "job_id", id)
		}
		return FireResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	res := FireResult{JobID: id, Action: job.Action}
	log := r.log.With("job_id", id, "action", job.Action)

	if job.Recurring {
		skipped, err := r.consumeSkip(ctx, id)
		if err != nil {
			return res, err
		}
		if skipped {
			res.Skipped = true
			res.Success = true
			log.Infow("occurrence skipped")
			return res, nil
		}
	}

	runErr := r.dispatch(ctx, job, &res)
	res.Success = runErr == nil
	if runErr != nil {
		log.Errorw("job failed", "err", runErr)
	} else {
		log.Infow("job fired")
		r.ping(ctx, job)
	}

	if !job.Recurring {
		if _, err := r.cron.RemoveByPattern(ctx, crontab.JobPattern(id)); err != nil {
			log.Warnw("one-off entry not removed", "err", err)
		}
		if runErr == nil {
			if err := r.jobs.Delete(ctx, id); err != nil {
				log.Warnw("one-off record not deleted", "err", err)
			}
			r.retireCheck(ctx, job)
		}
	}
	return res, runErr
}

// consumeSkip reports whether today's occurrence is skipped, deleting the
// skip record when it is used up or stale.
func (r *JobRunner) consumeSkip(ctx context.Context, id string) (bool, error) {
	skip, found, err := r.skips.GetSkip(ctx, id)
	if err != nil || !found {
		return false, err
	}
	today := r.now().In(r.tz.Location()).Format(dateLayout)
	switch {
	case skip.SkipDate == today:
		return true, r.skips.DeleteSkip(ctx, id)
	case skip.SkipDate < today:
		if err := r.skips.DeleteSkip(ctx, id); err != nil {
			r.log.Warnw("stale skip not deleted", "job_id", id, "err", err)
		}
	}
	return false, nil
}

func (r *JobRunner) dispatch(ctx context.Context, job models.Job, res *FireResult) error {
	switch job.Action {
	case models.ActionHeaterOn:
		return r.equipment.HeaterOn(ctx)
	case models.ActionHeaterOff:
		return r.equipment.HeaterOff(ctx)
	case models.ActionPumpRun:
		return r.equipment.RunPump(ctx)
	case models.ActionHeatToTarget:
		target, ok := job.TargetTempF()
		if !ok {
			return fmt.Errorf("%w: job %s has no target", ErrTargetOutOfRange, job.ID)
		}
		if job.IsReadyBy() {
			wake, err := r.readyBy.HandleWakeUp(ctx, job.Params.ReadyByTime, target)
			res.WakeUp = &wake
			return err
		}
		check, err := r.target.Start(ctx, target)
		if errors.Is(err, ErrAlreadyActive) {
			return nil
		}
		if err == nil {
			res.Check = &check
		}
		return err
	case models.ActionHeatTargetCheck:
		check, err := r.target.CheckAndAdjust(ctx)
		if err == nil {
			res.Check = &check
		}
		return err
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, job.Action)
	}
}

func (r *JobRunner) ping(ctx context.Context, job models.Job) {
	if r.monitor == nil || job.HealthcheckPingURL == "" {
		return
	}
	if err := r.monitor.Ping(ctx, job.HealthcheckPingURL); err != nil {
		r.log.Warnw("monitor ping failed", "job_id", job.ID, "err", err)
	}
}

// retireCheck deletes the monitoring check of a one-off job that will not run again.
func (r *JobRunner) retireCheck(ctx context.Context, job models.Job) {
	if r.monitor == nil || job.HealthcheckUUID == "" {
		return
	}
	if err := r.monitor.Delete(ctx, job.HealthcheckUUID); err != nil {
		r.log.Warnw("monitor check not deleted", "job_id", job.ID, "err", err)
	}
}
