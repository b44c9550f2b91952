package service

import (
	"context"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/thermal"
)

// maxSimulatedF caps the simulated water temperature.
const maxSimulatedF = 106.0

// SimulatorService stands in for the sensor on a dry-run install: every tick
// it advances a simple tub model from the last reading and the heater state
// and appends the result as a new reading.
type SimulatorService struct {
	readings repository.ReadingRepo
	heater   heaterState
	cfg      config.SimulatorConfig
	log      *logger.Logger
}

func NewSimulatorService(readings repository.ReadingRepo, heater heaterState, cfg config.SimulatorConfig, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		readings: readings,
		heater:   heater,
		cfg:      cfg,
		log:      logger.OrNop(log),
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := s.step(ctx, now); err != nil {
				s.log.Warnw("simulator step", "err", err)
			}
		}
	}
}

// step appends the next simulated reading; ok is false when nothing was
// written because less than a second passed.
func (s *SimulatorService) step(ctx context.Context, now time.Time) (bool, error) {
	last, found, err := s.readings.Latest(ctx)
	if err != nil {
		return false, err
	}
	ambient := s.cfg.AmbientF
	if !found {
		return true, s.append(ctx, now, s.cfg.StartTempF, ambient)
	}

	elapsed := now.Sub(last.RecordedAt)
	if elapsed < time.Second {
		return false, nil
	}
	on, err := s.heater.IsHeaterOn(ctx)
	if err != nil {
		return false, err
	}
	return true, s.append(ctx, now, s.advance(last.WaterTempF, on, elapsed.Minutes()), ambient)
}

// advance moves the water temperature by minutes of heating or cooling.
func (s *SimulatorService) advance(water float64, heating bool, minutes float64) float64 {
	if heating {
		return minFloat(water+s.cfg.VelocityFPerMin*minutes, maxSimulatedF)
	}
	return thermal.ProjectCooling(water, s.cfg.AmbientF, s.cfg.CoolingK, minutes)
}

func (s *SimulatorService) append(ctx context.Context, at time.Time, water, ambient float64) error {
	_, err := s.readings.Append(ctx, models.TemperatureReading{
		DeviceID:     s.cfg.DeviceID,
		RecordedAt:   at.UTC(),
		WaterTempF:   thermal.Round(water),
		AmbientTempF: &ambient,
	})
	return err
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
