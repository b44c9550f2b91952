package handlers

import (
	"errors"
	"net/http"

	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusStarted   = "started"
	statusStopped   = "stopped"
	statusCancelled = "cancelled"
	statusUnskipped = "unskipped"

	errInvalidBodyPref = "invalid body: "
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidTime),
		errors.Is(err, service.ErrTimeInPast),
		errors.Is(err, service.ErrTargetOutOfRange),
		errors.Is(err, service.ErrInvalidJobID),
		errors.Is(err, service.ErrInvalidReading):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrNoReading),
		errors.Is(err, service.ErrNoCharacteristics):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotRecurring),
		errors.Is(err, service.ErrAlreadySkipped),
		errors.Is(err, service.ErrNotSkipped),
		errors.Is(err, service.ErrAlreadyActive),
		errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrTriggerFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Client errors echo the
// message; server errors are logged and hidden behind userMsg.
func (h *Handler) respondError(c *gin.Context, err error, userMsg, logKey string, kv ...interface{}) {
	code := statusFor(err)
	if code < http.StatusInternalServerError && code != http.StatusBadGateway {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	var verr *crontab.VerificationError
	if errors.As(err, &verr) {
		kv = append(kv, "crontab_op", verr.Op)
	}
	h.logAndJSONError(c, code, userMsg, logKey, err, kv...)
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Tub status
// @Description  Control loop state, derived heater state and the latest reading.
// @Tags         status
// @Produce      json
// @Success      200  {object}  models.TubStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to load status", "status_get_failed")
		return
	}
	c.JSON(http.StatusOK, st)
}
