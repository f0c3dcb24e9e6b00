package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loophealth/voicebot/internal/health"
	"github.com/loophealth/voicebot/internal/models"
	"github.com/loophealth/voicebot/pkg/utils"
	"github.com/sirupsen/logrus"
)

type HealthHandler struct {
	checker *health.HealthChecker
	logger  *logrus.Logger
}

func NewHealthHandler(checker *health.HealthChecker, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

// HandleHealth returns basic liveness info.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	response := models.HealthResponse{
		Status:    "healthy",
		Service:   "voicebot",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	utils.SuccessResponse(c, http.StatusOK, "Service is healthy", response)
}

// HandleDetailedHealth checks every collaborator and reports per-service
// status. Returns 503 when any dependency is unhealthy.
func (h *HealthHandler) HandleDetailedHealth(c *gin.Context) {
	overall := h.checker.CheckAll()

	statusCode := http.StatusOK
	if overall.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	services := make(map[string]string, len(overall.Services))
	for _, service := range overall.Services {
		services[service.Name] = service.Status
	}

	response := models.HealthResponse{
		Status:    overall.Status,
		Service:   "voicebot",
		Timestamp: time.Now().Format(time.RFC3339),
		Services:  services,
	}

	utils.SuccessResponse(c, statusCode, "Health check completed", response)
}
