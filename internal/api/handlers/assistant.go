package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loophealth/voicebot/internal/assistant"
	"github.com/loophealth/voicebot/internal/database"
	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/internal/models"
	"github.com/loophealth/voicebot/internal/repository"
	"github.com/loophealth/voicebot/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	pipelineTimeout = 10 * time.Second
	voiceTimeout    = 30 * time.Second
	replyCacheTTL   = 5 * time.Minute
	maxUtteranceLen = 500
	maxAudioBytes   = 10 << 20
)

// AssistantHandler serves the text and voice question-answering endpoints.
// The cache and repository manager may be nil when analytics is disabled.
type AssistantHandler struct {
	service     *assistant.Service
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	logger      *logrus.Logger
}

func NewAssistantHandler(
	service *assistant.Service,
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	logger *logrus.Logger,
) *AssistantHandler {
	return &AssistantHandler{
		service:     service,
		repoManager: repoManager,
		cache:       cache,
		logger:      logger,
	}
}

// HandleQuery answers one text utterance.
func (h *AssistantHandler) HandleQuery(c *gin.Context) {
	startTime := time.Now()

	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid query request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Utterance cannot be empty", nil)
		return
	}
	if len(utterance) > maxUtteranceLen {
		utils.ErrorResponse(c, http.StatusBadRequest, "Utterance too long (max 500 characters)", nil)
		return
	}

	userSession := h.getUserSession(c)

	h.logger.WithFields(logrus.Fields{
		"utterance":    utterance,
		"user_session": userSession,
		"ip_address":   c.ClientIP(),
	}).Info("Processing query")

	ctx, cancel := context.WithTimeout(c.Request.Context(), pipelineTimeout)
	defer cancel()

	var reply *assistant.Reply

	cacheKey := utils.MD5Hash(hospital.Normalize(utterance))
	cached := &assistant.Reply{}
	if h.cache != nil && h.cache.GetCachedReply(ctx, cacheKey, cached) == nil {
		h.logger.Debug("Reply served from cache")
		reply = cached
	} else {
		reply = h.service.Answer(ctx, utterance)

		if h.cache != nil {
			if err := h.cache.CacheReply(ctx, cacheKey, reply, replyCacheTTL); err != nil {
				h.logger.WithError(err).Warn("Failed to cache reply")
			}
		}
	}

	responseTime := time.Since(startTime)

	go h.trackQuery(userSession, utterance, reply, responseTime, c.GetHeader("User-Agent"), c.ClientIP(), false)
	go h.updatePopularQueries(utterance, len(reply.Hospitals), responseTime)

	response := models.QueryResponse{
		Reply:        reply.Text,
		Outcome:      reply.Outcome,
		Reason:       reply.Reason,
		Hospitals:    reply.Hospitals,
		ResponseTime: int(responseTime.Milliseconds()),
	}

	h.logger.WithFields(logrus.Fields{
		"outcome":       reply.Outcome,
		"results_count": len(reply.Hospitals),
		"response_time": responseTime.Milliseconds(),
	}).Info("Query completed")

	utils.SuccessResponse(c, http.StatusOK, "Query answered", response)
}

// HandleVoice answers one spoken utterance: audio in, audio out. The reply
// text and transcript travel in response headers so the client can show them.
func (h *AssistantHandler) HandleVoice(c *gin.Context) {
	startTime := time.Now()

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Missing audio file field", err)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read audio", err)
		return
	}
	if len(audio) == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Empty audio upload", nil)
		return
	}
	if len(audio) > maxAudioBytes {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Audio too large (max 10MB)", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), voiceTimeout)
	defer cancel()

	reply := h.service.AnswerVoice(ctx, audio, header.Filename)

	responseTime := time.Since(startTime)
	userSession := h.getUserSession(c)
	if reply.Utterance != "" {
		go h.trackQuery(userSession, reply.Utterance, &reply.Reply, responseTime, c.GetHeader("User-Agent"), c.ClientIP(), true)
	}

	c.Header("X-Reply-Text", reply.Text)
	c.Header("X-Utterance", reply.Utterance)
	c.Header("X-Outcome", string(reply.Outcome))

	if reply.Audio == nil {
		// Synthesis unavailable; the text reply still answers the question.
		utils.SuccessResponse(c, http.StatusOK, "Voice reply (text only)", models.QueryResponse{
			Reply:        reply.Text,
			Outcome:      reply.Outcome,
			Reason:       reply.Reason,
			Hospitals:    reply.Hospitals,
			ResponseTime: int(responseTime.Milliseconds()),
		})
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", reply.Audio)
}

// HandleFeedback records user feedback on an answer.
func (h *AssistantHandler) HandleFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback format", err)
		return
	}

	validTypes := map[string]bool{
		"helpful":           true,
		"not_helpful":       true,
		"partially_helpful": true,
	}
	if !validTypes[req.FeedbackType] {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback type", nil)
		return
	}

	if h.repoManager == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Feedback storage unavailable", nil)
		return
	}

	feedback := &models.UserFeedback{
		QueryID:      req.QueryID,
		FeedbackType: req.FeedbackType,
		FeedbackText: req.FeedbackText,
		UserSession:  h.getUserSession(c),
	}

	if err := h.repoManager.UserFeedback.Create(feedback); err != nil {
		h.logger.WithError(err).Error("Failed to save feedback")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to save feedback", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Feedback recorded", nil)
}

// HandleSuggestions returns popular utterances matching the prefix.
func (h *AssistantHandler) HandleSuggestions(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required", nil)
		return
	}

	if h.repoManager == nil {
		utils.SuccessResponse(c, http.StatusOK, "Suggestions retrieved", []models.PopularQuery{})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if limit > 10 {
		limit = 10
	}

	suggestions, err := h.repoManager.PopularQuery.GetTop(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get suggestions")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get suggestions", err)
		return
	}

	filtered := make([]models.PopularQuery, 0)
	queryLower := strings.ToLower(query)
	for _, suggestion := range suggestions {
		if strings.Contains(strings.ToLower(suggestion.QueryText), queryLower) {
			filtered = append(filtered, suggestion)
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Suggestions retrieved", filtered)
}

// Helper methods

func (h *AssistantHandler) getUserSession(c *gin.Context) string {
	if session := c.GetHeader("X-Session-ID"); session != "" {
		return session
	}
	return utils.GenerateSessionID(c.ClientIP() + c.GetHeader("User-Agent"))
}

func (h *AssistantHandler) trackQuery(userSession, utterance string, reply *assistant.Reply, responseTime time.Duration, userAgent, ip string, voice bool) {
	if h.repoManager == nil {
		return
	}

	entry := &models.QueryLog{
		Utterance:      utterance,
		Outcome:        string(reply.Outcome),
		Reason:         reply.Reason,
		ResultsCount:   len(reply.Hospitals),
		UserSession:    userSession,
		AskedAt:        time.Now(),
		ResponseTimeMs: int(responseTime.Milliseconds()),
		UserAgent:      userAgent,
		IPAddress:      ip,
		Voice:          voice,
	}

	if err := h.repoManager.QueryLog.Create(entry); err != nil {
		h.logger.WithError(err).Error("Failed to track query")
	}
}

func (h *AssistantHandler) updatePopularQueries(utterance string, resultsCount int, responseTime time.Duration) {
	if h.repoManager == nil {
		return
	}

	if err := h.repoManager.PopularQuery.IncrementCount(utterance); err != nil {
		h.logger.WithError(err).Error("Failed to update popular queries")
		return
	}

	if err := h.repoManager.PopularQuery.UpdateStats(utterance, float64(resultsCount), int(responseTime.Milliseconds())); err != nil {
		h.logger.WithError(err).Error("Failed to update query stats")
	}
}
