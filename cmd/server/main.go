package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/loophealth/voicebot/internal/api/handlers"
	"github.com/loophealth/voicebot/internal/assistant"
	"github.com/loophealth/voicebot/internal/config"
	"github.com/loophealth/voicebot/internal/database"
	"github.com/loophealth/voicebot/internal/health"
	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/internal/llm"
	"github.com/loophealth/voicebot/internal/middleware"
	"github.com/loophealth/voicebot/internal/repository"
	"github.com/loophealth/voicebot/internal/retrieval"
	"github.com/loophealth/voicebot/internal/speech"
	"github.com/loophealth/voicebot/internal/vectorindex"
	"github.com/loophealth/voicebot/pkg/utils"
	"github.com/sirupsen/logrus"
)

// retryEmbedder routes index embedding through the client's retry wrapper.
type retryEmbedder struct {
	client *llm.Client
}

func (e retryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.EmbedWithRetry(ctx, texts)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	utils.InitLogger()
	logger := utils.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateAI(); err != nil {
		logger.WithError(err).Fatal("Invalid AI configuration")
	}

	// Hospital dataset. A missing or malformed CSV falls back to the bundled
	// sample records inside NewStore, so this never fails.
	store := hospital.NewStore(cfg.Dataset.Path, logger)
	logger.WithFields(logrus.Fields{
		"records": len(store.Records()),
		"cities":  len(store.Cities()),
	}).Info("Hospital store loaded")

	llmClient := llm.NewClient(llm.Config{
		BaseURL:    cfg.AI.BaseURL,
		APIKey:     cfg.AI.APIKey,
		ChatModel:  cfg.AI.ChatModel,
		EmbedModel: cfg.AI.EmbedModel,
		Timeout:    cfg.AI.Timeout,
	}, logger)

	speechClient := speech.NewClient(speech.Config{
		BaseURL:  cfg.Speech.BaseURL,
		APIKey:   cfg.Speech.APIKey,
		STTModel: cfg.Speech.STTModel,
		TTSModel: cfg.Speech.TTSModel,
		Voice:    cfg.Speech.Voice,
		Timeout:  cfg.Speech.Timeout,
	}, logger)

	// Embed every hospital document up front. The index is small enough to
	// hold in memory for the life of the process.
	buildCtx, buildCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	docs := make([]string, 0, len(store.Records()))
	for _, record := range store.Records() {
		docs = append(docs, record.Document())
	}
	index, err := vectorindex.Build(buildCtx, docs, retryEmbedder{client: llmClient}, logger)
	buildCancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to build vector index")
	}
	logger.WithFields(logrus.Fields{
		"vectors":   index.Len(),
		"dimension": index.Dimension(),
	}).Info("Vector index built")

	routerOpts := retrieval.DefaultOptions()
	routerOpts.TopK = cfg.Retrieval.TopK
	routerOpts.MinScore = float32(cfg.Retrieval.MinScore)
	queryRouter := retrieval.NewRouter(store, index, routerOpts, logger)

	service := assistant.NewService(queryRouter, llmClient, speechClient, speechClient, logger)

	// Analytics layer. Postgres and Redis are optional: if either is down we
	// log a warning and run without query logging and the reply cache.
	var repoManager *repository.RepositoryManager
	var cache *database.Cache
	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Analytics storage unavailable, continuing without it")
	} else {
		if err := dbManager.Migrate(); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		repoManager = repository.NewRepositoryManager(dbManager.DB)
		cache = database.NewCache(dbManager.Redis, logger)
		defer dbManager.Close()
	}

	healthChecker := newHealthChecker(dbManager, repoManager, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go healthChecker.PeriodicHealthCheck(ctx, 30*time.Second)

	assistantHandler := handlers.NewAssistantHandler(service, repoManager, cache, logger)
	healthHandler := handlers.NewHealthHandler(healthChecker, logger)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(60)
	router.Use(rateLimiter.RateLimit())

	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/health/detailed", healthHandler.HandleDetailedHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", assistantHandler.HandleQuery)
		v1.POST("/voice", assistantHandler.HandleVoice)
		v1.POST("/feedback", assistantHandler.HandleFeedback)
		v1.GET("/suggestions", assistantHandler.HandleSuggestions)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting voicebot server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

func newHealthChecker(dbManager *database.Manager, repoManager *repository.RepositoryManager, logger *logrus.Logger, cfg *config.Config) *health.HealthChecker {
	if repoManager != nil {
		return health.NewHealthChecker(dbManager, repoManager.SystemHealth, logger, cfg.AI.BaseURL, cfg.Speech.BaseURL)
	}
	return health.NewHealthChecker(nil, nil, logger, cfg.AI.BaseURL, cfg.Speech.BaseURL)
}
