package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/service"
)

func TestJobHandlers_CreateListCancel(t *testing.T) {
	jobs := &mockJobs{job: models.Job{ID: "job-0000000a", Action: models.ActionHeaterOn, ScheduledTime: "2026-03-10T11:30:00Z"}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Jobs: jobs}
	r := newTestRouter(s)

	w := do(t, r, http.MethodPost, "/api/v1/jobs", `{"action":"heat-to-target","time":"2026-03-10T06:30:00-05:00","target_temp_f":104}`)
	expectCode(t, w, http.StatusCreated)
	var job models.Job
	decode(t, w, &job)
	if job.ID != "job-0000000a" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if jobs.lastReq.Action != models.ActionHeatToTarget || jobs.lastReq.Recurring {
		t.Fatalf("unexpected request: %+v", jobs.lastReq)
	}
	if jobs.lastReq.Params == nil || *jobs.lastReq.Params.TargetTempF != 104 {
		t.Fatalf("target not passed: %+v", jobs.lastReq.Params)
	}

	next := time.Date(2026, 3, 11, 11, 30, 0, 0, time.UTC)
	jobs.views = []models.JobView{{Job: job, NextRun: &next}}
	w = do(t, r, http.MethodGet, "/api/v1/jobs", "")
	expectCode(t, w, http.StatusOK)
	var list struct {
		Count int              `json:"count"`
		Jobs  []models.JobView `json:"jobs"`
	}
	decode(t, w, &list)
	if list.Count != 1 || list.Jobs[0].NextRun == nil || !list.Jobs[0].NextRun.Equal(next) {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = do(t, r, http.MethodDelete, "/api/v1/jobs/job-0000000a", "")
	expectCode(t, w, http.StatusOK)
	if jobs.lastID != "job-0000000a" {
		t.Fatalf("cancel got id %q", jobs.lastID)
	}
}

func TestJobHandlers_CreateIgnoresReadyByParams(t *testing.T) {
	jobs := &mockJobs{}
	s := &service.Service{Authorization: &mockAuth{}, Jobs: jobs}
	r := newTestRouter(s)

	w := do(t, r, http.MethodPost, "/api/v1/jobs",
		`{"action":"heater-on","time":"06:30-05:00","recurring":true,"params":{"ready_by_time":"07:00-05:00"}}`)
	expectCode(t, w, http.StatusCreated)
	if jobs.lastReq.Params != nil {
		t.Fatalf("params must not be forwarded: %+v", jobs.lastReq.Params)
	}
	if !jobs.lastReq.Recurring || jobs.lastReq.Time != "06:30-05:00" {
		t.Fatalf("unexpected request: %+v", jobs.lastReq)
	}
}

func TestJobHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		err    error
		want   int
	}{
		{"missing body fields", http.MethodPost, "/api/v1/jobs", `{"action":"heater-on"}`, nil, http.StatusBadRequest},
		{"invalid action", http.MethodPost, "/api/v1/jobs", `{"action":"sauna","time":"06:30-05:00"}`, fmt.Errorf("%w: %q", service.ErrInvalidAction, "sauna"), http.StatusBadRequest},
		{"time in past", http.MethodPost, "/api/v1/jobs", `{"action":"heater-on","time":"2020-01-01T00:00:00Z"}`, service.ErrTimeInPast, http.StatusBadRequest},
		{"target out of range", http.MethodPost, "/api/v1/jobs", `{"action":"heat-to-target","time":"06:30-05:00","target_temp_f":120}`, service.ErrTargetOutOfRange, http.StatusBadRequest},
		{"crontab failure", http.MethodPost, "/api/v1/jobs", `{"action":"heater-on","time":"06:30-05:00"}`, fmt.Errorf("install entry: %w", errBoom), http.StatusInternalServerError},
		{"cancel unknown", http.MethodDelete, "/api/v1/jobs/job-deadbeef", "", fmt.Errorf("%w: job-deadbeef", service.ErrJobNotFound), http.StatusNotFound},
		{"cancel bad id", http.MethodDelete, "/api/v1/jobs/nope", "", service.ErrInvalidJobID, http.StatusBadRequest},
		{"skip one-off", http.MethodPost, "/api/v1/jobs/job-0000000a/skip", "", service.ErrNotRecurring, http.StatusConflict},
		{"skip twice", http.MethodPost, "/api/v1/jobs/rec-0000000a/skip", "", service.ErrAlreadySkipped, http.StatusConflict},
		{"unskip not skipped", http.MethodDelete, "/api/v1/jobs/rec-0000000a/skip", "", service.ErrNotSkipped, http.StatusConflict},
		{"list failure", http.MethodGet, "/api/v1/jobs", "", errBoom, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &service.Service{Authorization: &mockAuth{}, Jobs: &mockJobs{err: tc.err}}
			w := do(t, newTestRouter(s), tc.method, tc.path, tc.body)
			expectCode(t, w, tc.want)
			var out struct {
				Error string `json:"error"`
			}
			decode(t, w, &out)
			if out.Error == "" {
				t.Fatalf("missing error message")
			}
			if tc.want == http.StatusInternalServerError && out.Error == errBoom.Error() {
				t.Fatalf("internal error leaked to client: %q", out.Error)
			}
		})
	}
}

func TestJobHandlers_SkipUnskip(t *testing.T) {
	jobs := &mockJobs{skip: models.SkipRecord{JobID: "rec-0000000a", SkipDate: "2026-03-10"}}
	s := &service.Service{Authorization: &mockAuth{}, Jobs: jobs}
	r := newTestRouter(s)

	w := do(t, r, http.MethodPost, "/api/v1/jobs/rec-0000000a/skip", "")
	expectCode(t, w, http.StatusOK)
	var skip models.SkipRecord
	decode(t, w, &skip)
	if skip.SkipDate != "2026-03-10" {
		t.Fatalf("unexpected skip: %+v", skip)
	}

	w = do(t, r, http.MethodDelete, "/api/v1/jobs/rec-0000000a/skip", "")
	expectCode(t, w, http.StatusOK)
	if got := jobs.calls; len(got) != 2 || got[0] != "skip" || got[1] != "unskip" {
		t.Fatalf("unexpected calls: %v", got)
	}
}

func TestReadyByHandler(t *testing.T) {
	rb := &mockReadyBy{job: models.Job{ID: "rec-0000000b", ScheduledTime: "07:00-05:00", Recurring: true}}
	s := &service.Service{Authorization: &mockAuth{}, ReadyBy: rb}
	r := newTestRouter(s)

	w := do(t, r, http.MethodPost, "/api/v1/ready-by", `{"ready_by":"07:00-05:00","target_temp_f":104}`)
	expectCode(t, w, http.StatusCreated)
	if rb.lastReadyBy != "07:00-05:00" || rb.lastTarget != 104 {
		t.Fatalf("unexpected call: %q %.1f", rb.lastReadyBy, rb.lastTarget)
	}

	rb.err = fmt.Errorf("%w: bad offset", service.ErrInvalidTime)
	w = do(t, r, http.MethodPost, "/api/v1/ready-by", `{"ready_by":"7am","target_temp_f":104}`)
	expectCode(t, w, http.StatusBadRequest)

	w = do(t, r, http.MethodPost, "/api/v1/ready-by", `{"target_temp_f":104}`)
	expectCode(t, w, http.StatusBadRequest)
}
