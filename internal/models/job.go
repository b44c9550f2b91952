package models

import "time"

// Job actions accepted from API callers.
const (
	ActionHeaterOn     = "heater-on"
	ActionHeaterOff    = "heater-off"
	ActionPumpRun      = "pump-run"
	ActionHeatToTarget = "heat-to-target"
)

// ActionHeatTargetCheck is scheduled only by the target temperature loop to
// continue itself; it is never accepted from the API.
const ActionHeatTargetCheck = "heat-target-check"

// Job id prefixes.
const (
	OneOffPrefix    = "job-"
	RecurringPrefix = "rec-"
)

// JobParams holds optional per-action parameters.
type JobParams struct {
	TargetTempF *float64 `json:"target_temp_f,omitempty"`
	// ReadyByTime marks a ready-by job: the record displays this time while
	// the timer entry fires at WakeTime.
	ReadyByTime string `json:"ready_by_time,omitempty"`
	WakeTime    string `json:"wake_time,omitempty"`
}

// Job is the durable record of a scheduled one-off or recurring job.
type Job struct {
	ID       string `json:"job_id"`
	Action   string `json:"action"`
	Endpoint string `json:"endpoint"`
	// ScheduledTime is RFC3339 UTC for one-off jobs and HH:MM±HH:MM for recurring ones.
	ScheduledTime      string     `json:"scheduled_time"`
	Recurring          bool       `json:"recurring"`
	CreatedAt          time.Time  `json:"created_at"`
	Params             *JobParams `json:"params,omitempty"`
	HealthcheckUUID    string     `json:"healthcheck_uuid,omitempty"`
	HealthcheckPingURL string     `json:"healthcheck_ping_url,omitempty"`
}

// IsReadyBy reports whether the job is a ready-by (predictive) schedule.
func (j Job) IsReadyBy() bool {
	return j.Params != nil && j.Params.ReadyByTime != ""
}

// TargetTempF returns the target parameter, if any.
func (j Job) TargetTempF() (float64, bool) {
	if j.Params == nil || j.Params.TargetTempF == nil {
		return 0, false
	}
	return *j.Params.TargetTempF, true
}

// SkipRecord suppresses a single upcoming occurrence of a recurring job.
type SkipRecord struct {
	JobID     string    `json:"job_id"`
	SkipDate  string    `json:"skip_date"` // YYYY-MM-DD, system-local
	CreatedAt time.Time `json:"created_at"`
}

// JobView is a Job as returned by listings.
type JobView struct {
	Job
	NextRun    *time.Time `json:"next_run,omitempty"`
	Skipped    bool       `json:"skipped"`
	SkipDate   string     `json:"skip_date,omitempty"`
	ResumeDate string     `json:"resume_date,omitempty"`
}
