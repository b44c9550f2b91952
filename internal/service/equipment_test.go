package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"controlling_hottub/internal/config"
	"controlling_hottub/internal/models"
)

func newEquipment(trigger *fakeTrigger, events *fakeEventRepo) *EquipmentService {
	svc := NewEquipmentService(trigger, events, config.EquipmentConfig{
		HeaterOn:  "hot-tub-heat-on",
		HeaterOff: "hot-tub-heat-off",
		PumpRun:   "cycle_hot_tub_ionizer",
	}, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestEquipmentService_ActionsTriggerAndRecord(t *testing.T) {
	trigger := &fakeTrigger{ok: true}
	events := &fakeEventRepo{}
	svc := newEquipment(trigger, events)
	ctx := context.Background()

	steps := []struct {
		do        func(context.Context) error
		wantEvent string
		wantType  string
	}{
		{svc.HeaterOn, "hot-tub-heat-on", models.EventHeaterOn},
		{svc.RunPump, "cycle_hot_tub_ionizer", models.EventPumpRun},
		{svc.HeaterOff, "hot-tub-heat-off", models.EventHeaterOff},
	}
	for i, st := range steps {
		if err := st.do(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if trigger.events[i] != st.wantEvent {
			t.Fatalf("step %d event=%q, want %q", i, trigger.events[i], st.wantEvent)
		}
		if events.appended[i].Type != st.wantType {
			t.Fatalf("step %d type=%q, want %q", i, events.appended[i].Type, st.wantType)
		}
	}
}

func TestEquipmentService_TriggerFailureRecordsEvent(t *testing.T) {
	cases := []struct {
		name    string
		trigger *fakeTrigger
	}{
		{"transport error", &fakeTrigger{err: errors.New("timeout")}},
		{"rejected", &fakeTrigger{ok: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := &fakeEventRepo{}
			svc := newEquipment(tc.trigger, events)

			err := svc.HeaterOn(context.Background())
			if !errors.Is(err, ErrTriggerFailed) {
				t.Fatalf("err=%v", err)
			}
			if len(events.appended) != 1 || events.appended[0].Type != models.EventTriggerFailed {
				t.Fatalf("events=%+v", events.appended)
			}
			on, _ := svc.IsHeaterOn(context.Background())
			if on {
				t.Fatal("failed trigger must not count as heater on")
			}
		})
	}
}

func TestEquipmentService_IsHeaterOnFollowsLastHeaterEvent(t *testing.T) {
	events := &fakeEventRepo{}
	svc := newEquipment(&fakeTrigger{ok: true}, events)
	ctx := context.Background()

	if on, err := svc.IsHeaterOn(ctx); err != nil || on {
		t.Fatalf("empty log on=%v err=%v", on, err)
	}
	_ = svc.HeaterOn(ctx)
	_ = svc.RunPump(ctx)
	if on, _ := svc.IsHeaterOn(ctx); !on {
		t.Fatal("expected on after HEATER_ON then PUMP_RUN")
	}
	_ = svc.HeaterOff(ctx)
	if on, _ := svc.IsHeaterOn(ctx); on {
		t.Fatal("expected off after HEATER_OFF")
	}
}

func TestEquipmentService_EndpointFor(t *testing.T) {
	svc := newEquipment(&fakeTrigger{}, &fakeEventRepo{})
	if got := svc.EndpointFor(models.ActionPumpRun); got != "cycle_hot_tub_ionizer" {
		t.Fatalf("pump endpoint=%q", got)
	}
	if got := svc.EndpointFor(models.ActionHeatToTarget); got != "" {
		t.Fatalf("heat-to-target endpoint=%q", got)
	}
}
