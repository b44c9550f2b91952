package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = fmt.Errorf("%w: range start must not be after its end", ErrInvalidTime)
	errUnknownEventType = fmt.Errorf("%w: unknown event type", ErrInvalidAction)
)

var knownEventTypes = map[string]bool{
	models.EventHeaterOn:      true,
	models.EventHeaterOff:     true,
	models.EventPumpRun:       true,
	models.EventTriggerFailed: true,
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces, uppercases and accepts dashes for
// underscores ("heater-on" == "HEATER_ON").
func normalizeEventType(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToUpper(s)), "-", "_")
}

// normalizeAndValidateFilter prepares query parameters and validates them.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	if eventType != "" && !knownEventTypes[eventType] {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: %q", errUnknownEventType, f.Type)
	}
	return from, to, eventType, nil
}

// List returns equipment events matching f, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.EquipmentEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}
