package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/loophealth/voicebot/internal/database"
	"github.com/loophealth/voicebot/internal/models"
	"github.com/sirupsen/logrus"
)

// HealthChecker pings the assistant's collaborators: Postgres, Redis, the
// model API and the speech API. Database-backed checks are skipped when
// analytics is disabled.
type HealthChecker struct {
	dbManager  *database.Manager
	cache      *database.Cache
	healthRepo models.SystemHealthRepository
	logger     *logrus.Logger
	aiURL      string
	speechURL  string
}

func NewHealthChecker(dbManager *database.Manager, healthRepo models.SystemHealthRepository, logger *logrus.Logger, aiURL, speechURL string) *HealthChecker {
	h := &HealthChecker{
		dbManager:  dbManager,
		healthRepo: healthRepo,
		logger:     logger,
		aiURL:      aiURL,
		speechURL:  speechURL,
	}
	if dbManager != nil {
		h.cache = database.NewCache(dbManager.Redis, logger)
	}
	return h
}

// ServiceHealth represents the health status of a service.
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health.
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

func (h *HealthChecker) CheckPostgreSQL() ServiceHealth {
	if h.dbManager == nil {
		return ServiceHealth{Name: "postgresql", Status: "degraded", Error: "analytics disabled", LastChecked: time.Now().Format(time.RFC3339)}
	}

	start := time.Now()
	err := h.dbManager.PingDatabase()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).Error("PostgreSQL health check failed")
	}

	h.record("postgresql", status, responseTime, errorMsg)

	return ServiceHealth{
		Name:         "postgresql",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

func (h *HealthChecker) CheckRedis() ServiceHealth {
	if h.dbManager == nil {
		return ServiceHealth{Name: "redis", Status: "degraded", Error: "analytics disabled", LastChecked: time.Now().Format(time.RFC3339)}
	}

	start := time.Now()
	err := h.dbManager.PingRedis()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).Error("Redis health check failed")
	}

	h.record("redis", status, responseTime, errorMsg)

	return ServiceHealth{
		Name:         "redis",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckModelAPI probes the chat/embedding endpoint host.
func (h *HealthChecker) CheckModelAPI() ServiceHealth {
	return h.checkHTTP("model_api", h.aiURL+"/models")
}

// CheckSpeechAPI probes the speech endpoint host.
func (h *HealthChecker) CheckSpeechAPI() ServiceHealth {
	return h.checkHTTP("speech_api", h.speechURL+"/models")
}

func (h *HealthChecker) checkHTTP(name, url string) ServiceHealth {
	start := time.Now()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)

	responseTime := int(time.Since(start).Milliseconds())
	status := "healthy"
	errorMsg := ""

	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
	} else {
		defer resp.Body.Close()
		// 401 means the host is up and auth is enforced, which is fine for a
		// liveness probe.
		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized {
			status = "unhealthy"
			errorMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}

	if status != "healthy" {
		h.logger.WithField("service", name).WithError(err).Error("Service health check failed")
	}

	h.record(name, status, responseTime, errorMsg)

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

func (h *HealthChecker) record(service, status string, responseTime int, errorMsg string) {
	if h.healthRepo == nil {
		return
	}
	if err := h.healthRepo.UpdateServiceHealth(service, status, responseTime, errorMsg); err != nil {
		h.logger.WithError(err).Warn("Failed to record service health")
	}
}

// CheckAll performs health checks on all services.
func (h *HealthChecker) CheckAll() OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(),
		h.CheckRedis(),
		h.CheckModelAPI(),
		h.CheckSpeechAPI(),
	}

	overallStatus := "healthy"
	for _, service := range services {
		if service.Status == "unhealthy" {
			overallStatus = "unhealthy"
			break
		}
		if service.Status == "degraded" && overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	return OverallHealth{
		Status:   overallStatus,
		Services: services,
		Uptime:   h.getUptime(),
	}
}

var startTime = time.Now()

func (h *HealthChecker) getUptime() string {
	return time.Since(startTime).String()
}

// PeriodicHealthCheck runs health checks on a fixed interval until the
// context is cancelled.
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			overall := h.CheckAll()

			if h.cache != nil {
				cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				healthModels := make([]models.SystemHealth, len(overall.Services))
				for i, service := range overall.Services {
					checkedAt, _ := time.Parse(time.RFC3339, service.LastChecked)
					healthModels[i] = models.SystemHealth{
						ServiceName:    service.Name,
						Status:         service.Status,
						ResponseTimeMs: service.ResponseTime,
						ErrorMessage:   service.Error,
						CheckedAt:      checkedAt,
					}
				}
				if err := h.cache.CacheSystemHealth(cacheCtx, healthModels, 2*interval); err != nil {
					h.logger.WithError(err).Error("Failed to cache health status")
				}
				cancel()
			}

			h.logger.WithField("status", overall.Status).Debug("Periodic health check completed")
		}
	}
}
