package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"controlling_hottub/internal/clients"
	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/models"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/schedule"
	"controlling_hottub/internal/timezone"

	"github.com/spf13/afero"
)

// fakeEventRepo records List arguments and serves canned events.
type fakeEventRepo struct {
	mu       sync.Mutex
	gotFrom  time.Time
	gotTo    time.Time
	gotType  string
	events   []models.EquipmentEvent
	appended []models.EquipmentEvent
	err      error
	calls    int
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.EquipmentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom, f.gotTo, f.gotType = from, to, typ
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.EquipmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, e)
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) Last(ctx context.Context, types ...string) (models.EquipmentEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.EquipmentEvent{}, false, f.err
	}
	for i := len(f.events) - 1; i >= 0; i-- {
		for _, typ := range types {
			if f.events[i].Type == typ {
				return f.events[i], true, nil
			}
		}
	}
	return models.EquipmentEvent{}, false, nil
}

// memCrontab is an in-memory crontab(1).
type memCrontab struct {
	content    string
	exists     bool
	installErr error
}

func (b *memCrontab) Read(ctx context.Context) (string, error) {
	if !b.exists {
		return "", crontab.ErrNoCrontab
	}
	return b.content, nil
}

func (b *memCrontab) Install(ctx context.Context, content string) error {
	if b.installErr != nil {
		return b.installErr
	}
	b.content, b.exists = content, true
	return nil
}

// lines returns the non-blank crontab lines containing substr.
func (b *memCrontab) lines(substr string) []string {
	var out []string
	for _, l := range strings.Split(b.content, "\n") {
		if strings.TrimSpace(l) != "" && strings.Contains(l, substr) {
			out = append(out, l)
		}
	}
	return out
}

// fakeState is an in-memory control state with a switchable lock.
type fakeState struct {
	st        models.ControlState
	saves     int
	clears    int
	lockErr   error
	lockCalls int
	loadErr   error
}

func (f *fakeState) Load(ctx context.Context) (models.ControlState, error) { return f.st, f.loadErr }

func (f *fakeState) Save(ctx context.Context, st models.ControlState) error {
	f.saves++
	f.st = st
	return nil
}

func (f *fakeState) Clear(ctx context.Context) error {
	f.clears++
	f.st = models.ControlState{}
	return nil
}

func (f *fakeState) TryLock() (func(), error) {
	f.lockCalls++
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return func() {}, nil
}

type fakeSensor struct {
	reading models.TemperatureReading
	err     error
}

func (f *fakeSensor) CurrentReading(ctx context.Context) (models.TemperatureReading, error) {
	return f.reading, f.err
}

func waterAt(f float64) *fakeSensor {
	return &fakeSensor{reading: models.TemperatureReading{WaterTempF: f, RecordedAt: time.Now()}}
}

type fakeHeater struct {
	on     bool
	ons    int
	offs   int
	pumps  int
	errOn  error
	errOff error
}

func (h *fakeHeater) HeaterOn(ctx context.Context) error {
	h.ons++
	if h.errOn != nil {
		return h.errOn
	}
	h.on = true
	return nil
}

func (h *fakeHeater) HeaterOff(ctx context.Context) error {
	h.offs++
	if h.errOff != nil {
		return h.errOff
	}
	h.on = false
	return nil
}

func (h *fakeHeater) RunPump(ctx context.Context) error {
	h.pumps++
	return nil
}

func (h *fakeHeater) IsHeaterOn(ctx context.Context) (bool, error) { return h.on, nil }

type fakeTrigger struct {
	events []string
	ok     bool
	err    error
}

func (f *fakeTrigger) Trigger(ctx context.Context, event string) (bool, error) {
	f.events = append(f.events, event)
	return f.ok, f.err
}

type fakeMonitor struct {
	created []string
	pings   []string
	deleted []string
	err     error
}

func (m *fakeMonitor) CreateCheck(ctx context.Context, name, sched, tz string, grace time.Duration) (clients.Check, error) {
	if m.err != nil {
		return clients.Check{}, m.err
	}
	m.created = append(m.created, sched)
	return clients.Check{ID: "chk-1", PingURL: "https://hc.example/ping/chk-1"}, nil
}

func (m *fakeMonitor) Ping(ctx context.Context, url string) error {
	m.pings = append(m.pings, url)
	return m.err
}

func (m *fakeMonitor) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

type fakeReadings struct {
	stored []models.TemperatureReading
	err    error
}

func (f *fakeReadings) Append(ctx context.Context, r models.TemperatureReading) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	r.ID = int64(len(f.stored) + 1)
	f.stored = append(f.stored, r)
	return r.ID, nil
}

func (f *fakeReadings) Latest(ctx context.Context) (models.TemperatureReading, bool, error) {
	if f.err != nil || len(f.stored) == 0 {
		return models.TemperatureReading{}, false, f.err
	}
	return f.stored[len(f.stored)-1], true, nil
}

func (f *fakeReadings) List(ctx context.Context, from, to time.Time) ([]models.TemperatureReading, error) {
	return f.stored, f.err
}

type fakeChars struct {
	c     models.Characteristics
	found bool
	saved []models.Characteristics
}

func (f *fakeChars) Load(ctx context.Context) (models.Characteristics, bool, error) {
	return f.c, f.found, nil
}

func (f *fakeChars) Save(ctx context.Context, c models.Characteristics) error {
	f.saved = append(f.saved, c)
	f.c, f.found = c, true
	return nil
}

var errBoom = errors.New("boom")

// jobHarness is a job registry over an in-memory filesystem and crontab.
type jobHarness struct {
	svc     *JobService
	files   *repository.JobFiles
	table   *memCrontab
	monitor *fakeMonitor
	now     time.Time
	ids     int
}

func newJobHarness(t *testing.T, loc *time.Location) *jobHarness {
	t.Helper()
	fs := afero.NewMemMapFs()
	h := &jobHarness{
		files: repository.NewJobFiles(fs, "/storage/scheduled-jobs"),
		table: &memCrontab{},
		now:   time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	mut := crontab.NewMutator(h.table, crontab.Options{Fs: fs, StateDir: "/storage/state"})
	h.svc = NewJobService(JobServiceDeps{
		Jobs:       h.files,
		Skips:      h.files,
		Cron:       mut,
		Timezone:   timezone.Fixed(loc),
		Commands:   schedule.CommandBuilder{Binary: "/usr/local/bin/hottubctl"},
		MinTargetF: 80,
		MaxTargetF: 110,
		Endpoints:  func(a string) string { return "evt-" + a },
	})
	h.svc.now = func() time.Time { return h.now }
	h.svc.newID = func(prefix string) string {
		h.ids++
		return prefix + []string{"0000000a", "0000000b", "0000000c", "0000000d", "0000000e", "0000000f"}[h.ids-1]
	}
	return h
}

func (h *jobHarness) withMonitor() *fakeMonitor {
	h.monitor = &fakeMonitor{}
	h.svc.monitor = h.monitor
	return h.monitor
}

func ptr[T any](v T) *T { return &v }
