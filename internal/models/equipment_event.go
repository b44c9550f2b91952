package models

import "time"

// Equipment event types.
const (
	EventHeaterOn      = "HEATER_ON"
	EventHeaterOff     = "HEATER_OFF"
	EventPumpRun       = "PUMP_RUN"
	EventTriggerFailed = "TRIGGER_FAILED"
)

// EquipmentEvent is a single actuation log entry.
type EquipmentEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // HEATER_ON | HEATER_OFF | PUMP_RUN | TRIGGER_FAILED
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
