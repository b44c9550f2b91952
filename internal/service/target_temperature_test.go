package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
)

type targetHarness struct {
	svc    *TargetTemperatureService
	jobs   *jobHarness
	state  *fakeState
	sensor *fakeSensor
	heater *fakeHeater
	sleeps []time.Duration
}

func testControlConfig() config.ControlConfig {
	return config.ControlConfig{
		MinTargetF:     80,
		MaxTargetF:     110,
		ToleranceF:     0.1,
		CheckInterval:  time.Minute,
		MinMargin:      15 * time.Second,
		SweepDelay:     2 * time.Second,
		LockBackoffMin: 50 * time.Millisecond,
		LockBackoffMax: 250 * time.Millisecond,
	}
}

func newTargetHarness(t *testing.T, water float64) *targetHarness {
	t.Helper()
	h := &targetHarness{
		jobs:   newJobHarness(t, time.UTC),
		state:  &fakeState{},
		sensor: waterAt(water),
		heater: &fakeHeater{},
	}
	h.jobs.now = time.Date(2026, time.March, 10, 12, 0, 30, 0, time.UTC)
	h.svc = NewTargetTemperatureService(h.state, h.sensor, h.heater, h.jobs.svc, testControlConfig(), nil)
	h.svc.now = func() time.Time { return h.jobs.now }
	h.svc.sleep = func(d time.Duration) { h.sleeps = append(h.sleeps, d) }
	h.svc.jitter = func(lo, hi time.Duration) time.Duration { return lo }
	return h
}

func (h *targetHarness) checkEntries() int {
	return len(h.jobs.table.lines(":heat-target-check:"))
}

func TestTargetTemperature_StartBelowTargetHeatsAndSchedulesCheck(t *testing.T) {
	h := newTargetHarness(t, 95)

	res, err := h.svc.Start(context.Background(), 103)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Active || !res.Heating || res.TargetReached {
		t.Fatalf("res=%+v", res)
	}
	if h.heater.ons != 1 || !h.heater.on {
		t.Fatalf("heater ons=%d on=%v", h.heater.ons, h.heater.on)
	}
	want := time.Date(2026, time.March, 10, 12, 1, 0, 0, time.UTC)
	if res.NextCheckAt == nil || !res.NextCheckAt.Equal(want) {
		t.Fatalf("next check=%v, want %v", res.NextCheckAt, want)
	}
	if n := h.checkEntries(); n != 1 {
		t.Fatalf("check entries=%d, want 1", n)
	}
	if !h.state.st.Active || h.state.st.TargetTempF != 103 {
		t.Fatalf("state=%+v", h.state.st)
	}
}

func TestTargetTemperature_HeaterAlreadyOnIsNotRetriggered(t *testing.T) {
	h := newTargetHarness(t, 95)
	h.heater.on = true

	if _, err := h.svc.Start(context.Background(), 103); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.heater.ons != 0 {
		t.Fatalf("heater retriggered %d times", h.heater.ons)
	}
}

func TestTargetTemperature_StartWithinToleranceFinishesImmediately(t *testing.T) {
	h := newTargetHarness(t, 103.05)
	h.heater.on = true

	res, err := h.svc.Start(context.Background(), 103)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.TargetReached || res.Active || res.Heating {
		t.Fatalf("res=%+v", res)
	}
	if h.heater.offs != 1 || h.heater.on {
		t.Fatalf("heater offs=%d on=%v", h.heater.offs, h.heater.on)
	}
	if h.state.st.Active {
		t.Fatalf("state still active: %+v", h.state.st)
	}
	if n := h.checkEntries(); n != 0 {
		t.Fatalf("check entries=%d, want 0", n)
	}
	jobs, _ := h.jobs.files.List(context.Background())
	if len(jobs) != 0 {
		t.Fatalf("job records=%d, want 0", len(jobs))
	}
	if len(h.sleeps) != 1 || h.sleeps[0] != 2*time.Second {
		t.Fatalf("sweep sleeps=%v", h.sleeps)
	}
}

func TestTargetTemperature_CheckSequenceUntilReached(t *testing.T) {
	h := newTargetHarness(t, 95)
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.jobs.now = h.jobs.now.Add(time.Minute)
	h.sensor.reading.WaterTempF = 99.95
	res, err := h.svc.CheckAndAdjust(ctx)
	if err != nil {
		t.Fatalf("CheckAndAdjust: %v", err)
	}
	if !res.TargetReached {
		t.Fatalf("res=%+v", res)
	}
	if n := h.checkEntries(); n != 0 {
		t.Fatalf("check entries=%d after reaching target", n)
	}

	// a late check after the loop ended does nothing
	res, err = h.svc.CheckAndAdjust(ctx)
	if err != nil || res.Active || res.Heating {
		t.Fatalf("inactive check res=%+v err=%v", res, err)
	}
}

func TestTargetTemperature_ManualCheckReplacesPendingCheck(t *testing.T) {
	h := newTargetHarness(t, 95)
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, 103); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.jobs.now = h.jobs.now.Add(20 * time.Second)
	res, err := h.svc.CheckAndAdjust(ctx)
	if err != nil {
		t.Fatalf("CheckAndAdjust: %v", err)
	}
	if !res.Heating {
		t.Fatalf("res=%+v", res)
	}
	if n := h.checkEntries(); n != 1 {
		t.Fatalf("check entries=%d, want 1", n)
	}
	jobs, _ := h.jobs.files.List(ctx)
	var checks int
	for _, j := range jobs {
		if j.Action == models.ActionHeatTargetCheck {
			checks++
		}
	}
	if checks != 1 {
		t.Fatalf("check records=%d, want 1", checks)
	}
}

func TestTargetTemperature_StartRejectsWhileActive(t *testing.T) {
	h := newTargetHarness(t, 95)
	h.state.st = models.ControlState{Active: true, TargetTempF: 100}

	if _, err := h.svc.Start(context.Background(), 103); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("err=%v", err)
	}
}

func TestTargetTemperature_StartRejectsOutOfRange(t *testing.T) {
	h := newTargetHarness(t, 95)
	for _, target := range []float64{79.9, 110.1} {
		if _, err := h.svc.Start(context.Background(), target); !errors.Is(err, ErrTargetOutOfRange) {
			t.Fatalf("target %.1f err=%v", target, err)
		}
	}
	if h.state.saves != 0 {
		t.Fatalf("state saved %d times", h.state.saves)
	}
}

func TestTargetTemperature_BusyLockSkipsCheck(t *testing.T) {
	h := newTargetHarness(t, 95)
	h.state.st = models.ControlState{Active: true, TargetTempF: 103}
	h.state.lockErr = repository.ErrLocked

	res, err := h.svc.CheckAndAdjust(context.Background())
	if err != nil {
		t.Fatalf("CheckAndAdjust: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("res=%+v, want skipped", res)
	}
	if h.state.lockCalls != 2 {
		t.Fatalf("lock attempts=%d, want 2", h.state.lockCalls)
	}
	if len(h.sleeps) != 1 || h.sleeps[0] != 50*time.Millisecond {
		t.Fatalf("backoff=%v", h.sleeps)
	}
	if h.heater.ons+h.heater.offs != 0 {
		t.Fatal("heater touched while skipped")
	}

	if _, err := h.svc.Start(context.Background(), 103); !errors.Is(err, ErrBusy) {
		t.Fatalf("Start err=%v, want ErrBusy", err)
	}
}

func TestTargetTemperature_NoReadingLeavesHeaterAndReschedules(t *testing.T) {
	h := newTargetHarness(t, 95)
	h.state.st = models.ControlState{Active: true, TargetTempF: 103}
	h.sensor.err = ErrNoReading

	res, err := h.svc.CheckAndAdjust(context.Background())
	if !errors.Is(err, ErrNoReading) {
		t.Fatalf("err=%v", err)
	}
	if res.Error == "" || res.NextCheckAt == nil {
		t.Fatalf("res=%+v", res)
	}
	if h.heater.ons+h.heater.offs != 0 {
		t.Fatal("heater touched without a reading")
	}
	if n := h.checkEntries(); n != 1 {
		t.Fatalf("check entries=%d, want 1", n)
	}
}

func TestTargetTemperature_StopClearsStateAndChecks(t *testing.T) {
	h := newTargetHarness(t, 95)
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, 103); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := h.svc.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.state.st.Active {
		t.Fatal("state still active")
	}
	if n := h.checkEntries(); n != 0 {
		t.Fatalf("check entries=%d", n)
	}
	if !h.heater.on || h.heater.offs != 0 {
		t.Fatal("Stop must leave the heater as it is")
	}
}

func TestTargetTemperature_NextCheckKeepsMargin(t *testing.T) {
	h := newTargetHarness(t, 95)
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC), time.Date(2026, 3, 10, 12, 1, 0, 0, time.UTC)},
		{time.Date(2026, 3, 10, 12, 0, 50, 0, time.UTC), time.Date(2026, 3, 10, 12, 2, 0, 0, time.UTC)},
		{time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 12, 1, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := h.svc.nextCheckAt(tc.now); !got.Equal(tc.want) {
			t.Errorf("nextCheckAt(%s)=%s, want %s", tc.now.Format(time.TimeOnly), got.Format(time.TimeOnly), tc.want.Format(time.TimeOnly))
		}
	}
}
