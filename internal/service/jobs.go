package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"controlling_hottub/internal/clients"
	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/schedule"
	"controlling_hottub/internal/timezone"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Internal endpoints of jobs that do not fire a webhook.
const (
	EndpointTargetTemperature = "internal:target-temperature"
	EndpointTargetCheck       = "internal:target-temperature-check"
)

// maxOneOffAhead bounds one-off jobs: their expression carries no year.
const maxOneOffAhead = 364 * 24 * time.Hour

// Crontab is the part of the crontab mutator the services use.
type Crontab interface {
	ListEntries(ctx context.Context) ([]string, error)
	AddEntry(ctx context.Context, line string) error
	RemoveByPattern(ctx context.Context, pattern string) (int, error)
	EnsureEntry(ctx context.Context, marker, line string) (bool, error)
}

// Monitor is the optional job monitoring collaborator.
type Monitor interface {
	CreateCheck(ctx context.Context, name, schedule, tz string, grace time.Duration) (clients.Check, error)
	Ping(ctx context.Context, pingURL string) error
	Delete(ctx context.Context, id string) error
}

type JobServiceDeps struct {
	Jobs       repository.JobRepo
	Skips      repository.SkipRepo
	Cron       Crontab
	Timezone   *timezone.Resolver
	Commands   schedule.CommandBuilder
	Monitor    Monitor // nil disables monitoring
	Grace      time.Duration
	MinTargetF float64
	MaxTargetF float64
	// Endpoints maps webhook actions to their event names.
	Endpoints func(action string) string
	Log       *logger.Logger
}

// JobService is the job registry: the only writer of job and skip records.
type JobService struct {
	jobs      repository.JobRepo
	skips     repository.SkipRepo
	cron      Crontab
	tz        *timezone.Resolver
	compiler  *schedule.Compiler
	commands  schedule.CommandBuilder
	monitor   Monitor
	grace     time.Duration
	minTarget float64
	maxTarget float64
	endpoints func(string) string
	log       *logger.Logger
	now       func() time.Time
	newID     func(prefix string) string
}

func NewJobService(d JobServiceDeps) *JobService {
	endpoints := d.Endpoints
	if endpoints == nil {
		endpoints = func(string) string { return "" }
	}
	return &JobService{
		jobs:      d.Jobs,
		skips:     d.Skips,
		cron:      d.Cron,
		tz:        d.Timezone,
		compiler:  schedule.NewCompiler(d.Timezone, d.Cron),
		commands:  d.Commands,
		monitor:   d.Monitor,
		grace:     d.Grace,
		minTarget: d.MinTargetF,
		maxTarget: d.MaxTargetF,
		endpoints: endpoints,
		log:       logger.OrNop(d.Log),
		now:       time.Now,
		newID:     newJobID,
	}
}

func newJobID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

var callerActions = map[string]bool{
	models.ActionHeaterOn:     true,
	models.ActionHeaterOff:    true,
	models.ActionPumpRun:      true,
	models.ActionHeatToTarget: true,
}

// jobPlan is a validated job ready to be persisted and installed.
type jobPlan struct {
	action    string
	recurring bool
	at        time.Time // one-off fire time
	display   string    // stored scheduled time
	fireDaily string    // recurring fire time, HH:MM±HH:MM
	params    *models.JobParams
	monitored bool
}

// ScheduleJob validates req, writes the job record and then installs its
// crontab entry.
func (s *JobService) ScheduleJob(ctx context.Context, req JobRequest) (models.Job, error) {
	action := strings.TrimSpace(req.Action)
	if !callerActions[action] {
		return models.Job{}, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if err := s.validateParams(action, req.Params); err != nil {
		return models.Job{}, err
	}

	p := jobPlan{action: action, recurring: req.Recurring, params: cleanParams(req.Params), monitored: true}
	if req.Recurring {
		if _, err := timezone.ParseOffsetTime(req.Time, time.UTC); err != nil {
			return models.Job{}, fmt.Errorf("%w: recurring time must be HH:MM±HH:MM: %v", ErrInvalidTime, err)
		}
		p.display = strings.TrimSpace(req.Time)
		p.fireDaily = p.display
	} else {
		at, err := s.parseFuture(req.Time)
		if err != nil {
			return models.Job{}, err
		}
		p.at = at
		p.display = at.UTC().Format(time.RFC3339)
	}
	return s.create(ctx, p)
}

// ScheduleReadyBy creates the daily ready-by job: it is listed at readyBy
// but its entry fires at wake.
func (s *JobService) ScheduleReadyBy(ctx context.Context, readyBy, wake string, targetF float64) (models.Job, error) {
	if _, err := timezone.ParseOffsetTime(wake, time.UTC); err != nil {
		return models.Job{}, fmt.Errorf("%w: wake time: %v", ErrInvalidTime, err)
	}
	return s.create(ctx, jobPlan{
		action:    models.ActionHeatToTarget,
		recurring: true,
		display:   readyBy,
		fireDaily: wake,
		params:    &models.JobParams{TargetTempF: &targetF, ReadyByTime: readyBy, WakeTime: wake},
		monitored: true,
	})
}

// ScheduleCheck installs the next control loop check at at, replacing any
// check still pending so only one continuation exists.
func (s *JobService) ScheduleCheck(ctx context.Context, at time.Time) (models.Job, error) {
	if !at.After(s.now()) {
		return models.Job{}, fmt.Errorf("%w: check at %s", ErrTimeInPast, at.Format(time.RFC3339))
	}
	if n, err := s.ClearChecks(ctx); err != nil {
		return models.Job{}, fmt.Errorf("clear pending checks: %w", err)
	} else if n > 0 {
		s.log.Debugw("pending control checks replaced", "count", n)
	}
	return s.create(ctx, jobPlan{
		action:  models.ActionHeatTargetCheck,
		at:      at,
		display: at.UTC().Format(time.RFC3339),
	})
}

// ClearChecks removes every pending control loop check, entries first.
func (s *JobService) ClearChecks(ctx context.Context) (int, error) {
	removed, err := s.cron.RemoveByPattern(ctx, crontab.ActionPattern(models.ActionHeatTargetCheck))
	if err != nil {
		return 0, err
	}
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return removed, err
	}
	var errs error
	for _, j := range jobs {
		if j.Action == models.ActionHeatTargetCheck {
			errs = multierr.Append(errs, s.jobs.Delete(ctx, j.ID))
		}
	}
	return removed, errs
}

func (s *JobService) validateParams(action string, p *models.JobParams) error {
	if action != models.ActionHeatToTarget {
		return nil
	}
	if p == nil || p.TargetTempF == nil {
		return fmt.Errorf("%w: heat-to-target requires target_temp_f", ErrTargetOutOfRange)
	}
	return s.checkTarget(*p.TargetTempF)
}

func (s *JobService) checkTarget(t float64) error {
	if t < s.minTarget || t > s.maxTarget {
		return fmt.Errorf("%w: %.1f°F not within %.0f-%.0f°F", ErrTargetOutOfRange, t, s.minTarget, s.maxTarget)
	}
	return nil
}

func (s *JobService) parseFuture(raw string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: one-off time must be RFC3339 with offset: %v", ErrInvalidTime, err)
	}
	now := s.now()
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrTimeInPast, at.Format(time.RFC3339))
	}
	if at.Sub(now) > maxOneOffAhead {
		return time.Time{}, fmt.Errorf("%w: %s is more than a year ahead", ErrInvalidTime, at.Format(time.RFC3339))
	}
	return at, nil
}

// cleanParams drops an empty parameter set so records stay minimal.
func cleanParams(p *models.JobParams) *models.JobParams {
	if p == nil || (p.TargetTempF == nil && p.ReadyByTime == "" && p.WakeTime == "") {
		return nil
	}
	cp := *p
	return &cp
}

func (s *JobService) endpointFor(action string) string {
	switch action {
	case models.ActionHeatToTarget:
		return EndpointTargetTemperature
	case models.ActionHeatTargetCheck:
		return EndpointTargetCheck
	default:
		return s.endpoints(action)
	}
}

func (s *JobService) create(ctx context.Context, p jobPlan) (models.Job, error) {
	prefix := models.OneOffPrefix
	if p.recurring {
		prefix = models.RecurringPrefix
	}
	job := models.Job{
		ID:            s.newID(prefix),
		Action:        p.action,
		Endpoint:      s.endpointFor(p.action),
		ScheduledTime: p.display,
		Recurring:     p.recurring,
		CreatedAt:     s.now().UTC(),
		Params:        p.params,
	}
	command, err := s.commands.Fire(job.ID)
	if err != nil {
		return models.Job{}, err
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		return models.Job{}, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	tag := crontab.Tag{JobID: job.ID, Action: job.Action, Kind: crontab.KindOnce}
	if p.recurring {
		tag.Kind = crontab.KindDaily
		_, err = s.compiler.ScheduleDaily(ctx, p.fireDaily, command, tag)
	} else {
		_, err = s.compiler.ScheduleAt(ctx, p.at, command, tag)
	}
	if err != nil {
		var verr *crontab.VerificationError
		if !errors.As(err, &verr) {
			// the entry was never installed; drop the record with it
			err = multierr.Append(err, s.jobs.Delete(ctx, job.ID))
		}
		return models.Job{}, fmt.Errorf("install entry for %s: %w", job.ID, err)
	}

	if p.monitored && s.monitor != nil {
		s.attachMonitor(ctx, &job, p)
	}
	s.log.Infow("job scheduled", "job_id", job.ID, "action", job.Action, "time", job.ScheduledTime, "recurring", job.Recurring)
	return job, nil
}

// attachMonitor registers a check mirroring the job in UTC and pings it once.
// Every failure here is logged and swallowed.
func (s *JobService) attachMonitor(ctx context.Context, job *models.Job, p jobPlan) {
	var expr string
	if p.recurring {
		var err error
		if expr, err = s.compiler.DailyExpressionFor(p.fireDaily, true); err != nil {
			s.log.Warnw("monitor schedule", "job_id", job.ID, "err", err)
			return
		}
	} else {
		expr = s.compiler.ExpressionFor(p.at, true)
	}

	chk, err := s.monitor.CreateCheck(ctx, "hottub "+job.ID+" "+job.Action, expr, "UTC", s.grace)
	if err != nil {
		s.log.Warnw("monitor check not created", "job_id", job.ID, "err", err)
		return
	}
	job.HealthcheckUUID = chk.ID
	job.HealthcheckPingURL = chk.PingURL
	if err := s.jobs.Save(ctx, *job); err != nil {
		s.log.Warnw("save monitor metadata", "job_id", job.ID, "err", err)
	}
	if err := s.monitor.Ping(ctx, chk.PingURL); err != nil {
		s.log.Warnw("monitor arm ping", "job_id", job.ID, "err", err)
	}
}

// ListJobs reconciles orphan entries and returns every job with its next
// run and skip status.
func (s *JobService) ListJobs(ctx context.Context) ([]models.JobView, error) {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.cron.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		known[j.ID] = true
	}
	schedules := make(map[string]string)
	reaped := make(map[string]bool)
	for _, line := range entries {
		tag, ok := crontab.OwnedTag(line)
		if !ok || !schedule.ValidJobID(tag.JobID) {
			continue
		}
		if !known[tag.JobID] {
			if reaped[tag.JobID] {
				continue
			}
			reaped[tag.JobID] = true
			if _, err := s.cron.RemoveByPattern(ctx, crontab.JobPattern(tag.JobID)); err != nil {
				return nil, fmt.Errorf("remove orphan entry %s: %w", tag.JobID, err)
			}
			s.log.Warnw("removed orphan crontab entry", "job_id", tag.JobID)
			continue
		}
		if e, ok := crontab.ParseEntry(line); ok {
			schedules[tag.JobID] = e.Schedule
		}
	}

	now := s.now()
	today := s.localDate(now)
	views := make([]models.JobView, 0, len(jobs))
	for _, j := range jobs {
		v := models.JobView{Job: j}
		if expr, ok := schedules[j.ID]; ok {
			if next, err := s.compiler.NextFire(expr, now); err == nil && !next.IsZero() {
				v.NextRun = &next
			}
		}
		if j.Recurring {
			skip, found, err := s.skips.GetSkip(ctx, j.ID)
			if err != nil {
				return nil, err
			}
			if found && skip.SkipDate >= today {
				v.Skipped = true
				v.SkipDate = skip.SkipDate
				v.ResumeDate = nextDate(skip.SkipDate)
			}
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, k int) bool { return views[i].CreatedAt.Before(views[k].CreatedAt) })
	return views, nil
}

// CancelJob removes the entry before the record, so a timer firing
// concurrently still finds the record.
func (s *JobService) CancelJob(ctx context.Context, id string) error {
	job, err := s.getJob(ctx, id)
	if err != nil {
		return err
	}
	if job.HealthcheckUUID != "" && s.monitor != nil {
		if err := s.monitor.Delete(ctx, job.HealthcheckUUID); err != nil {
			s.log.Warnw("monitor check not deleted", "job_id", id, "err", err)
		}
	}
	if _, err := s.cron.RemoveByPattern(ctx, crontab.JobPattern(id)); err != nil {
		return fmt.Errorf("remove entry for %s: %w", id, err)
	}
	if err := multierr.Combine(s.jobs.Delete(ctx, id), s.skips.DeleteSkip(ctx, id)); err != nil {
		return err
	}
	s.log.Infow("job cancelled", "job_id", id)
	return nil
}

// SkipNext suppresses the next occurrence of a recurring job: today if
// today's fire time has not passed in host time, tomorrow otherwise.
func (s *JobService) SkipNext(ctx context.Context, id string) (models.SkipRecord, error) {
	job, err := s.getJob(ctx, id)
	if err != nil {
		return models.SkipRecord{}, err
	}
	if !job.Recurring {
		return models.SkipRecord{}, ErrNotRecurring
	}
	now := s.now()
	if skip, found, err := s.skips.GetSkip(ctx, id); err != nil {
		return models.SkipRecord{}, err
	} else if found && skip.SkipDate >= s.localDate(now) {
		return models.SkipRecord{}, fmt.Errorf("%w: %s", ErrAlreadySkipped, skip.SkipDate)
	}

	date, err := s.nextOccurrenceDate(job, now)
	if err != nil {
		return models.SkipRecord{}, err
	}
	rec := models.SkipRecord{JobID: id, SkipDate: date, CreatedAt: now.UTC()}
	if err := s.skips.SaveSkip(ctx, rec); err != nil {
		return models.SkipRecord{}, err
	}
	s.log.Infow("job occurrence skipped", "job_id", id, "skip_date", date)
	return rec, nil
}

// UnskipNext removes a pending skip.
func (s *JobService) UnskipNext(ctx context.Context, id string) error {
	job, err := s.getJob(ctx, id)
	if err != nil {
		return err
	}
	if !job.Recurring {
		return ErrNotRecurring
	}
	skip, found, err := s.skips.GetSkip(ctx, id)
	if err != nil {
		return err
	}
	if !found || skip.SkipDate < s.localDate(s.now()) {
		return ErrNotSkipped
	}
	return s.skips.DeleteSkip(ctx, id)
}

// CleanupOrphans deletes records older than minAge that no crontab line
// mentions and returns their ids.
func (s *JobService) CleanupOrphans(ctx context.Context, minAge time.Duration) ([]string, error) {
	entries, err := s.cron.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	table := strings.Join(entries, "\n")
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		removed []string
		errs    error
	)
	for _, j := range jobs {
		if now.Sub(j.CreatedAt) < minAge || strings.Contains(table, j.ID) {
			continue
		}
		if err := multierr.Combine(s.jobs.Delete(ctx, j.ID), s.skips.DeleteSkip(ctx, j.ID)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		s.log.Infow("removed orphan job record", "job_id", j.ID, "created_at", j.CreatedAt)
		removed = append(removed, j.ID)
	}
	return removed, errs
}

func (s *JobService) getJob(ctx context.Context, id string) (models.Job, error) {
	if !schedule.ValidJobID(id) {
		return models.Job{}, fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	job, found, err := s.jobs.Get(ctx, id)
	if err != nil {
		return models.Job{}, err
	}
	if !found {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// nextOccurrenceDate is the host-local date of the job's next daily fire.
func (s *JobService) nextOccurrenceDate(job models.Job, now time.Time) (string, error) {
	loc := s.tz.Location()
	fire, err := timezone.ParseOffsetTime(fireTimeOf(job), loc)
	if err != nil {
		return "", fmt.Errorf("%w: stored time of %s: %v", ErrInvalidTime, job.ID, err)
	}
	local := now.In(loc)
	todayFire := time.Date(local.Year(), local.Month(), local.Day(), fire.Hour(), fire.Minute(), 0, 0, loc)
	if local.Before(todayFire) {
		return todayFire.Format(dateLayout), nil
	}
	return todayFire.AddDate(0, 0, 1).Format(dateLayout), nil
}

const dateLayout = "2006-01-02"

func (s *JobService) localDate(t time.Time) string {
	return t.In(s.tz.Location()).Format(dateLayout)
}

func nextDate(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, 1).Format(dateLayout)
}

// fireTimeOf is the time-of-day a recurring job's entry fires at.
func fireTimeOf(job models.Job) string {
	if job.Params != nil && job.Params.WakeTime != "" {
		return job.Params.WakeTime
	}
	return job.ScheduledTime
}
