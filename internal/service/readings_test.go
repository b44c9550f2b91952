package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"controlling_hottub/internal/models"
)

func TestReadingService_RecordReading(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		in      models.TemperatureReading
		wantErr bool
	}{
		{"valid", models.TemperatureReading{WaterTempF: 101.2, AmbientTempF: ptr(45.0)}, false},
		{"freezing", models.TemperatureReading{WaterTempF: 31}, true},
		{"scalding", models.TemperatureReading{WaterTempF: 131}, true},
		{"nan", models.TemperatureReading{WaterTempF: math.NaN()}, true},
		{"ambient out of range", models.TemperatureReading{WaterTempF: 100, AmbientTempF: ptr(150.0)}, true},
		{"future", models.TemperatureReading{WaterTempF: 100, RecordedAt: now.Add(10 * time.Minute)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeReadings{}
			svc := NewReadingService(repo, 30*time.Minute)
			svc.now = func() time.Time { return now }

			got, err := svc.RecordReading(context.Background(), tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidReading) {
					t.Fatalf("err=%v, want ErrInvalidReading", err)
				}
				if len(repo.stored) != 0 {
					t.Fatal("invalid reading stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("RecordReading: %v", err)
			}
			if got.ID != 1 || !got.RecordedAt.Equal(now) {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestReadingService_CurrentReadingEnforcesMaxAge(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeReadings{}
	svc := NewReadingService(repo, 30*time.Minute)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := svc.CurrentReading(ctx); !errors.Is(err, ErrNoReading) {
		t.Fatalf("empty err=%v", err)
	}

	repo.stored = []models.TemperatureReading{{WaterTempF: 99, RecordedAt: now.Add(-31 * time.Minute)}}
	if _, err := svc.CurrentReading(ctx); !errors.Is(err, ErrNoReading) {
		t.Fatalf("stale err=%v", err)
	}
	if r, err := svc.LatestReading(ctx); err != nil || r.WaterTempF != 99 {
		t.Fatalf("latest=%+v err=%v", r, err)
	}

	repo.stored = append(repo.stored, models.TemperatureReading{WaterTempF: 100, RecordedAt: now.Add(-time.Minute)})
	if r, err := svc.CurrentReading(ctx); err != nil || r.WaterTempF != 100 {
		t.Fatalf("fresh=%+v err=%v", r, err)
	}
}
