package handlers

import (
	"net/http"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateJobRequest is the payload for scheduling a job.
type CreateJobRequest struct {
	// One of heater-on, heater-off, pump-run, heat-to-target
	Action string `json:"action" binding:"required" example:"heater-on"`
	// RFC3339 with offset for one-off jobs, HH:MM±HH:MM for recurring ones
	Time      string `json:"time" binding:"required" example:"2026-03-10T06:30:00-05:00"`
	Recurring bool   `json:"recurring,omitempty"`
	// Required for heat-to-target
	TargetTempF *float64 `json:"target_temp_f,omitempty" example:"104"`
}

// @Summary      Schedule job
// @Description  One-off jobs take an RFC3339 time with offset; recurring jobs take HH:MM±HH:MM and fire daily.
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        body  body      CreateJobRequest  true  "Job payload"
// @Success      201   {object}  models.Job
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/jobs [post]
// @Security     BearerAuth
func (h *Handler) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	jr := service.JobRequest{
		Action:    req.Action,
		Time:      req.Time,
		Recurring: req.Recurring,
	}
	if req.TargetTempF != nil {
		jr.Params = &models.JobParams{TargetTempF: req.TargetTempF}
	}
	job, err := h.services.ScheduleJob(c.Request.Context(), jr)
	if err != nil {
		h.respondError(c, err, "failed to schedule job", "job_schedule_failed", "action", req.Action, "time", req.Time)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// @Summary      List jobs
// @Description  Lists scheduled jobs with their next run and skip state. Orphaned timer entries are reaped as a side effect.
// @Tags         jobs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, jobs"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/jobs [get]
// @Security     BearerAuth
func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.services.ListJobs(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list jobs", "job_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// @Summary      Cancel job
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Job id"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/jobs/{id} [delete]
// @Security     BearerAuth
func (h *Handler) cancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.CancelJob(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "failed to cancel job", "job_cancel_failed", "job_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCancelled, "job_id": id})
}

// @Summary      Skip next occurrence
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Recurring job id"
// @Success      200  {object}  models.SkipRecord
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/jobs/{id}/skip [post]
// @Security     BearerAuth
func (h *Handler) skipJob(c *gin.Context) {
	id := c.Param("id")
	skip, err := h.services.SkipNext(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "failed to skip job", "job_skip_failed", "job_id", id)
		return
	}
	c.JSON(http.StatusOK, skip)
}

// @Summary      Undo skip
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Recurring job id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/jobs/{id}/skip [delete]
// @Security     BearerAuth
func (h *Handler) unskipJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.UnskipNext(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "failed to unskip job", "job_unskip_failed", "job_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusUnskipped, "job_id": id})
}

// ReadyByRequest is the payload for a predictive daily schedule.
type ReadyByRequest struct {
	ReadyBy     string  `json:"ready_by" binding:"required" example:"07:00-05:00"`
	TargetTempF float64 `json:"target_temp_f" binding:"required" example:"104"`
}

// @Summary      Ready-by schedule
// @Description  Installs a daily job that starts heating early enough to reach the target by ready_by.
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        body  body      ReadyByRequest  true  "Ready-by payload"
// @Success      201   {object}  models.Job
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/ready-by [post]
// @Security     BearerAuth
func (h *Handler) createReadyBy(c *gin.Context) {
	var req ReadyByRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	job, err := h.services.CreateReadyBySchedule(c.Request.Context(), req.ReadyBy, req.TargetTempF)
	if err != nil {
		h.respondError(c, err, "failed to create ready-by schedule", "ready_by_failed", "ready_by", req.ReadyBy)
		return
	}
	c.JSON(http.StatusCreated, job)
}
