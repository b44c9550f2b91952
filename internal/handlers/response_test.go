package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/service"
)

var errBoom = errors.New("boom")

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidAction, http.StatusBadRequest},
		{fmt.Errorf("%w: x", service.ErrInvalidTime), http.StatusBadRequest},
		{service.ErrTimeInPast, http.StatusBadRequest},
		{service.ErrTargetOutOfRange, http.StatusBadRequest},
		{service.ErrInvalidJobID, http.StatusBadRequest},
		{service.ErrInvalidReading, http.StatusBadRequest},
		{service.ErrJobNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: stale", service.ErrNoReading), http.StatusNotFound},
		{service.ErrNoCharacteristics, http.StatusNotFound},
		{service.ErrNotRecurring, http.StatusConflict},
		{service.ErrAlreadySkipped, http.StatusConflict},
		{service.ErrNotSkipped, http.StatusConflict},
		{service.ErrAlreadyActive, http.StatusConflict},
		{service.ErrBusy, http.StatusConflict},
		{service.ErrTriggerFailed, http.StatusBadGateway},
		{&crontab.VerificationError{Op: "add"}, http.StatusInternalServerError},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
