package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartTargetRequest starts the heat-to-target loop.
type StartTargetRequest struct {
	TargetTempF float64 `json:"target_temp_f" binding:"required" example:"104"`
}

// @Summary      Start heat-to-target
// @Description  Activates the control loop and runs the first check immediately.
// @Tags         target
// @Accept       json
// @Produce      json
// @Param        body  body      StartTargetRequest  true  "Target"
// @Success      200   {object}  map[string]interface{}  "status, check"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/target-temperature [post]
// @Security     BearerAuth
func (h *Handler) startTarget(c *gin.Context) {
	var req StartTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	res, err := h.services.TargetTemperature.Start(c.Request.Context(), req.TargetTempF)
	if err != nil {
		h.respondError(c, err, "failed to start heat-to-target", "target_start_failed", "target_f", req.TargetTempF)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted, "check": res})
}

// @Summary      Stop heat-to-target
// @Description  Deactivates the loop and removes pending checks. The heater is left as it is.
// @Tags         target
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/target-temperature [delete]
// @Security     BearerAuth
func (h *Handler) stopTarget(c *gin.Context) {
	if err := h.services.TargetTemperature.Stop(c.Request.Context()); err != nil {
		h.respondError(c, err, "failed to stop heat-to-target", "target_stop_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStopped})
}

// @Summary      Heat-to-target state
// @Tags         target
// @Produce      json
// @Success      200  {object}  models.ControlState
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/target-temperature [get]
// @Security     BearerAuth
func (h *Handler) getTarget(c *gin.Context) {
	st, err := h.services.TargetTemperature.Status(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to load control state", "target_status_failed")
		return
	}
	c.JSON(http.StatusOK, st)
}
