package handlers

import (
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Status stream on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerJobRoutes(api)
		h.registerTargetRoutes(api)
		h.registerCharacteristicsRoutes(api)
		h.registerReadingRoutes(api)

		api.POST("/ready-by", h.createReadyBy)
		api.GET("/status", h.getStatus)
		api.GET("/logs", h.getLogs)
	}
}

func (h *Handler) registerJobRoutes(api *gin.RouterGroup) {
	jobs := api.Group("/jobs")
	{
		// Body example: {"action":"heater-on","time":"2026-03-10T06:30:00-05:00"}
		jobs.POST("", h.createJob)
		jobs.GET("", h.listJobs)
		jobs.DELETE("/:id", h.cancelJob)
		jobs.POST("/:id/skip", h.skipJob)
		jobs.DELETE("/:id/skip", h.unskipJob)
	}
}

func (h *Handler) registerTargetRoutes(api *gin.RouterGroup) {
	target := api.Group("/target-temperature")
	{
		target.POST("", h.startTarget)
		target.DELETE("", h.stopTarget)
		target.GET("", h.getTarget)
	}
}

func (h *Handler) registerCharacteristicsRoutes(api *gin.RouterGroup) {
	chars := api.Group("/characteristics")
	{
		chars.GET("", h.getCharacteristics)
		chars.POST("/generate", h.generateCharacteristics)
	}
}

func (h *Handler) registerReadingRoutes(api *gin.RouterGroup) {
	readings := api.Group("/readings")
	{
		readings.POST("", h.recordReading)
		readings.GET("/latest", h.latestReading)
	}
}
