package service

import (
	"context"
	"errors"
	"time"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
)

type heaterState interface {
	IsHeaterOn(ctx context.Context) (bool, error)
}

type latestReading interface {
	LatestReading(ctx context.Context) (models.TemperatureReading, error)
}

// MonitoringService assembles the read-only tub status.
type MonitoringService struct {
	state    repository.ControlStateRepo
	heater   heaterState
	readings latestReading
	now      func() time.Time
}

func NewMonitoringService(state repository.ControlStateRepo, heater heaterState, readings latestReading) *MonitoringService {
	return &MonitoringService{state: state, heater: heater, readings: readings, now: time.Now}
}

// GetStatus returns the control state, heater state and latest reading.
// A missing reading is not an error; the snapshot simply omits it.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.TubStatus, error) {
	st, err := s.state.Load(ctx)
	if err != nil {
		return models.TubStatus{}, err
	}
	on, err := s.heater.IsHeaterOn(ctx)
	if err != nil {
		return models.TubStatus{}, err
	}
	out := models.TubStatus{Control: st, HeaterOn: on, AsOf: s.now().UTC()}

	r, err := s.readings.LatestReading(ctx)
	switch {
	case err == nil:
		out.Reading = &r
	case !errors.Is(err, ErrNoReading):
		return models.TubStatus{}, err
	}
	return out, nil
}
