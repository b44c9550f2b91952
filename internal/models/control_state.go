package models

import "time"

// ControlState is the single record of the target temperature loop.
// Its absence means the loop is inactive.
type ControlState struct {
	Active      bool      `json:"active"`
	TargetTempF float64   `json:"target_temp_f"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CheckResult reports what one control loop cycle did.
type CheckResult struct {
	Skipped       bool       `json:"skipped,omitempty"`
	Active        bool       `json:"active"`
	Heating       bool       `json:"heating"`
	TargetReached bool       `json:"target_reached"`
	CurrentTempF  *float64   `json:"current_temp_f,omitempty"`
	TargetTempF   float64    `json:"target_temp_f,omitempty"`
	NextCheckAt   *time.Time `json:"next_check_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// TubStatus is the snapshot served to the status endpoint and websocket.
type TubStatus struct {
	Control  ControlState        `json:"control"`
	HeaterOn bool                `json:"heater_on"`
	Reading  *TemperatureReading `json:"reading,omitempty"`
	AsOf     time.Time           `json:"as_of"`
}
