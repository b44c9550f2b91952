package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
)

// Plausible water temperatures; anything outside is a sensor fault.
const (
	minPlausibleF = 32.0
	maxPlausibleF = 130.0
)

type ReadingService struct {
	readings repository.ReadingRepo
	maxAge   time.Duration
	now      func() time.Time
}

func NewReadingService(readings repository.ReadingRepo, maxAge time.Duration) *ReadingService {
	return &ReadingService{readings: readings, maxAge: maxAge, now: time.Now}
}

// RecordReading validates and stores a calibrated reading.
func (s *ReadingService) RecordReading(ctx context.Context, r models.TemperatureReading) (models.TemperatureReading, error) {
	if math.IsNaN(r.WaterTempF) || r.WaterTempF < minPlausibleF || r.WaterTempF > maxPlausibleF {
		return models.TemperatureReading{}, fmt.Errorf("%w: water %.2f°F", ErrInvalidReading, r.WaterTempF)
	}
	if r.AmbientTempF != nil && (math.IsNaN(*r.AmbientTempF) || *r.AmbientTempF < -60 || *r.AmbientTempF > 140) {
		return models.TemperatureReading{}, fmt.Errorf("%w: ambient %.2f°F", ErrInvalidReading, *r.AmbientTempF)
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.now()
	}
	if r.RecordedAt.After(s.now().Add(5 * time.Minute)) {
		return models.TemperatureReading{}, fmt.Errorf("%w: timestamp in the future", ErrInvalidReading)
	}
	r.RecordedAt = r.RecordedAt.UTC()
	r.DeviceID = strings.TrimSpace(r.DeviceID)

	id, err := s.readings.Append(ctx, r)
	if err != nil {
		return models.TemperatureReading{}, err
	}
	r.ID = id
	return r, nil
}

// LatestReading returns the newest reading regardless of age.
func (s *ReadingService) LatestReading(ctx context.Context) (models.TemperatureReading, error) {
	r, found, err := s.readings.Latest(ctx)
	if err != nil {
		return models.TemperatureReading{}, err
	}
	if !found {
		return models.TemperatureReading{}, ErrNoReading
	}
	return r, nil
}

// CurrentReading returns the newest reading if it is fresh enough to act on.
func (s *ReadingService) CurrentReading(ctx context.Context) (models.TemperatureReading, error) {
	r, err := s.LatestReading(ctx)
	if err != nil {
		return r, err
	}
	if s.maxAge > 0 {
		if age := s.now().Sub(r.RecordedAt); age > s.maxAge {
			return models.TemperatureReading{}, fmt.Errorf("%w: latest reading is %s old", ErrNoReading, age.Truncate(time.Second))
		}
	}
	return r, nil
}
