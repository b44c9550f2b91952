package service

import "errors"

// Validation errors. Nothing is persisted when one of these is returned.
var (
	ErrInvalidAction    = errors.New("invalid action")
	ErrInvalidTime      = errors.New("invalid time")
	ErrTimeInPast       = errors.New("scheduled time must be in the future")
	ErrTargetOutOfRange = errors.New("target temperature out of range")
	ErrInvalidJobID     = errors.New("invalid job id")
	ErrInvalidReading   = errors.New("invalid temperature reading")
)

var ErrJobNotFound = errors.New("job not found")

// Conflicts with the current state.
var (
	ErrNotRecurring   = errors.New("job is not recurring")
	ErrAlreadySkipped = errors.New("next occurrence already skipped")
	ErrNotSkipped     = errors.New("next occurrence is not skipped")
	ErrAlreadyActive  = errors.New("target temperature session already active")
	ErrBusy           = errors.New("control state locked by another invocation")
)

// Missing inputs.
var (
	ErrNoReading         = errors.New("no current temperature reading")
	ErrNoCharacteristics = errors.New("no heating characteristics generated yet")
	ErrTriggerFailed     = errors.New("equipment trigger failed")
)
