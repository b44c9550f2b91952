package service

import (
	"context"
	"fmt"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"

	"github.com/google/uuid"
)

// Trigger is the equipment actuation channel.
type Trigger interface {
	Trigger(ctx context.Context, event string) (bool, error)
}

// EquipmentService actuates the tub through the webhook and records every
// switch in the equipment event log.
type EquipmentService struct {
	trigger   Trigger
	eventRepo repository.EventRepo
	names     config.EquipmentConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewEquipmentService(trigger Trigger, eventRepo repository.EventRepo, names config.EquipmentConfig, log *logger.Logger) *EquipmentService {
	return &EquipmentService{
		trigger:   trigger,
		eventRepo: eventRepo,
		names:     names,
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

func (s *EquipmentService) HeaterOn(ctx context.Context) error {
	return s.actuate(ctx, s.names.HeaterOn, models.EventHeaterOn, "Heater turned on")
}

func (s *EquipmentService) HeaterOff(ctx context.Context) error {
	return s.actuate(ctx, s.names.HeaterOff, models.EventHeaterOff, "Heater turned off")
}

func (s *EquipmentService) RunPump(ctx context.Context) error {
	return s.actuate(ctx, s.names.PumpRun, models.EventPumpRun, "Pump cycle started")
}

// IsHeaterOn reports the heater state implied by the last heater event.
func (s *EquipmentService) IsHeaterOn(ctx context.Context) (bool, error) {
	ev, found, err := s.eventRepo.Last(ctx, models.EventHeaterOn, models.EventHeaterOff)
	if err != nil {
		return false, fmt.Errorf("read heater state: %w", err)
	}
	return found && ev.Type == models.EventHeaterOn, nil
}

// EndpointFor maps a job action to the webhook event it fires.
func (s *EquipmentService) EndpointFor(action string) string {
	switch action {
	case models.ActionHeaterOn:
		return s.names.HeaterOn
	case models.ActionHeaterOff:
		return s.names.HeaterOff
	case models.ActionPumpRun:
		return s.names.PumpRun
	default:
		return ""
	}
}

func (s *EquipmentService) actuate(ctx context.Context, event, typ, desc string) error {
	now := s.now().UTC()
	ok, err := s.trigger.Trigger(ctx, event)
	if err != nil || !ok {
		meta := map[string]any{"event": event, "intended": typ}
		if err != nil {
			meta["error"] = err.Error()
		}
		if aerr := s.eventRepo.Append(ctx, models.EquipmentEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  now,
			Type:        models.EventTriggerFailed,
			Description: desc + " failed",
			Metadata:    meta,
		}); aerr != nil {
			s.log.Warnw("record trigger failure", "err", aerr)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTriggerFailed, event, err)
		}
		return fmt.Errorf("%w: %s rejected", ErrTriggerFailed, event)
	}

	s.log.Infow("equipment triggered", "event", event, "type", typ)
	return s.eventRepo.Append(ctx, models.EquipmentEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        typ,
		Description: desc,
		Metadata:    map[string]any{"event": event},
	})
}
