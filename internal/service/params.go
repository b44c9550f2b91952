package service

import (
	"time"

	"controlling_hottub/internal/models"
)

// LogFilter supports history filtering by time range and event type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "HEATER_ON", "HEATER_OFF", "PUMP_RUN", "TRIGGER_FAILED"
}

// JobRequest is a caller's intent to run an action once or daily.
type JobRequest struct {
	Action string
	// Time is RFC3339 with an offset for one-off jobs, HH:MM±HH:MM for recurring.
	Time      string
	Recurring bool
	Params    *models.JobParams
}

// FireResult reports one crontab fire.
type FireResult struct {
	JobID   string              `json:"job_id"`
	Action  string              `json:"action"`
	Skipped bool                `json:"skipped,omitempty"`
	Success bool                `json:"success"`
	Check   *models.CheckResult `json:"check,omitempty"`
	WakeUp  *WakeUpResult       `json:"wake_up,omitempty"`
}

// Wake-up decisions.
const (
	DecisionStartNow   = "start_now"
	DecisionAlreadyHot = "already_hot"
	DecisionStaysWarm  = "stays_warm"
	DecisionScheduled  = "scheduled"
)

// WakeUpResult is what a ready-by wake-up decided.
type WakeUpResult struct {
	Decision       string     `json:"decision"`
	Reason         string     `json:"reason,omitempty"`
	ReadyAt        time.Time  `json:"ready_at"`
	TargetTempF    float64    `json:"target_temp_f"`
	CurrentTempF   *float64   `json:"current_temp_f,omitempty"`
	AmbientTempF   *float64   `json:"ambient_temp_f,omitempty"`
	ProjectedTempF *float64   `json:"projected_temp_f,omitempty"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	JobID          string     `json:"job_id,omitempty"`
}

// GenerateParams bounds the history the characteristics are fitted on.
type GenerateParams struct {
	From time.Time
	To   time.Time
}
