package handlers

import (
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/service"
)

func TestReadingHandlers_RecordUnits(t *testing.T) {
	cases := []struct {
		name string
		body string
		want float64
	}{
		{"fahrenheit", `{"water_temp_f":101.5,"ambient_temp_f":48}`, 101.5},
		{"temp_f over temp_c", `{"device_id":"probe","temp_f":99.1,"temp_c":37.3}`, 99.1},
		{"celsius only", `{"device_id":"probe","temp_c":40}`, 104},
		{"water wins", `{"water_temp_f":100,"temp_f":90}`, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rd := &mockReadings{}
			s := &service.Service{Authorization: &mockAuth{}, Readings: rd}
			w := do(t, newTestRouter(s), http.MethodPost, "/api/v1/readings", tc.body)
			expectCode(t, w, http.StatusCreated)
			if len(rd.recorded) != 1 || math.Abs(rd.recorded[0].WaterTempF-tc.want) > 1e-9 {
				t.Fatalf("recorded %+v, want water %.2f", rd.recorded, tc.want)
			}
		})
	}
}

func TestReadingHandlers_RecordTimestampAndErrors(t *testing.T) {
	rd := &mockReadings{}
	s := &service.Service{Authorization: &mockAuth{}, Readings: rd}
	r := newTestRouter(s)

	w := do(t, r, http.MethodPost, "/api/v1/readings", `{"water_temp_f":100,"timestamp":"2026-03-10T07:00:00-05:00"}`)
	expectCode(t, w, http.StatusCreated)
	want := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if !rd.recorded[0].RecordedAt.Equal(want) {
		t.Fatalf("timestamp = %s, want %s", rd.recorded[0].RecordedAt, want)
	}

	expectCode(t, do(t, r, http.MethodPost, "/api/v1/readings", `{"device_id":"probe"}`), http.StatusBadRequest)

	rd.err = fmt.Errorf("%w: water 300.00°F", service.ErrInvalidReading)
	expectCode(t, do(t, r, http.MethodPost, "/api/v1/readings", `{"water_temp_f":300}`), http.StatusBadRequest)
}

func TestReadingHandlers_Latest(t *testing.T) {
	rd := &mockReadings{latest: models.TemperatureReading{ID: 7, WaterTempF: 102.4}}
	s := &service.Service{Authorization: &mockAuth{}, Readings: rd}
	r := newTestRouter(s)

	w := do(t, r, http.MethodGet, "/api/v1/readings/latest", "")
	expectCode(t, w, http.StatusOK)
	var got models.TemperatureReading
	decode(t, w, &got)
	if got.ID != 7 || got.WaterTempF != 102.4 {
		t.Fatalf("unexpected reading: %+v", got)
	}

	rd.err = service.ErrNoReading
	expectCode(t, do(t, r, http.MethodGet, "/api/v1/readings/latest", ""), http.StatusNotFound)
}
