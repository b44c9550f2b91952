package handlers

import (
	"net/http"
	"time"

	"controlling_hottub/internal/models"

	"github.com/gin-gonic/gin"
)

// RecordReadingRequest is one calibrated water reading. temp_f and temp_c
// are unit alternatives; water_temp_f wins when several are set.
type RecordReadingRequest struct {
	DeviceID     string     `json:"device_id,omitempty" example:"tub-probe"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	WaterTempF   *float64   `json:"water_temp_f,omitempty" example:"101.3"`
	TempF        *float64   `json:"temp_f,omitempty"`
	TempC        *float64   `json:"temp_c,omitempty"`
	AmbientTempF *float64   `json:"ambient_temp_f,omitempty" example:"48.2"`
}

func (r RecordReadingRequest) waterF() (float64, bool) {
	switch {
	case r.WaterTempF != nil:
		return *r.WaterTempF, true
	case r.TempF != nil:
		return *r.TempF, true
	case r.TempC != nil:
		return *r.TempC*9/5 + 32, true
	}
	return 0, false
}

// @Summary      Record reading
// @Tags         readings
// @Accept       json
// @Produce      json
// @Param        body  body      RecordReadingRequest  true  "Reading"
// @Success      201   {object}  models.TemperatureReading
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/readings [post]
// @Security     BearerAuth
func (h *Handler) recordReading(c *gin.Context) {
	var req RecordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	water, ok := req.waterF()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + "one of water_temp_f, temp_f or temp_c is required"})
		return
	}
	r := models.TemperatureReading{
		DeviceID:     req.DeviceID,
		WaterTempF:   water,
		AmbientTempF: req.AmbientTempF,
	}
	if req.Timestamp != nil {
		r.RecordedAt = *req.Timestamp
	}
	saved, err := h.services.RecordReading(c.Request.Context(), r)
	if err != nil {
		h.respondError(c, err, "failed to record reading", "reading_record_failed", "device_id", req.DeviceID)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// @Summary      Latest reading
// @Description  Returns the newest reading regardless of its age.
// @Tags         readings
// @Produce      json
// @Success      200  {object}  models.TemperatureReading
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/readings/latest [get]
// @Security     BearerAuth
func (h *Handler) latestReading(c *gin.Context) {
	r, err := h.services.LatestReading(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to load reading", "reading_latest_failed")
		return
	}
	c.JSON(http.StatusOK, r)
}
