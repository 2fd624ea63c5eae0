package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/drama"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/game"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/handler"
	appLogger "github.com/SparxCinTech/InteractiveStoryGame/internal/logger"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/narrative"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/savestore"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/speech"
)

func main() {
	// --- Configuration ---
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	logger, err := appLogger.New(appLogger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded", zap.String("aiClientType", cfg.AIClientType), zap.String("saveBackend", cfg.SaveBackend))

	gameCfg, err := config.LoadGameConfig(cfg.GameConfigPath)
	if err != nil {
		logger.Fatal("Failed to load game config", zap.Error(err))
	}

	// --- AI Client ---
	aiClient, err := ai.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}
	if checker, ok := aiClient.(ai.AvailabilityChecker); ok {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if !checker.CheckAvailability(probeCtx) {
			logger.Warn("Configured AI model is not reachable, generation will fall back",
				zap.String("model", cfg.AIModel), zap.String("baseURL", cfg.AIBaseURL))
		}
		probeCancel()
	}
	params := ai.Params(cfg)

	// --- Save Store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, closeBackend, err := savestore.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize save backend", zap.Error(err))
	}
	defer closeBackend()
	store := savestore.New(backend)

	// --- Dependency Injection ---
	provider := prompts.NewProvider(gameCfg.Templates, logger.Named("PromptProvider"))
	analyzer := drama.NewAnalyzer(aiClient, provider, params, logger.Named("DramaAnalyzer"))
	engine := narrative.NewEngine(aiClient, provider, analyzer, params,
		gameCfg.Settings.MaxChoices, gameCfg.Fallback.Development(), logger.Named("NarrativeEngine"))
	session := game.NewSession(gameCfg, aiClient, provider, params, engine, store, logger.Named("GameSession"))

	var synthesizer *speech.Synthesizer
	if cfg.SpeechEnabled {
		synthesizer, err = speech.New(cfg, gameCfg, logger.Named("Speech"))
		if err != nil {
			logger.Fatal("Failed to initialize speech synthesizer", zap.Error(err))
		}
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				synthesizer.CleanupCache()
			}
		}()
	}

	storyHandler := handler.NewStoryHandler(session, synthesizer, logger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(ginZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	storyHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation requests can be slow
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	// Final autosave so a deliberate stop never loses progress.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if saveID, err := session.Autosave(saveCtx); err != nil {
		logger.Error("Shutdown autosave failed", zap.Error(err))
	} else {
		logger.Info("Shutdown autosave written", zap.String("saveId", saveID))
	}

	logger.Info("Server exiting")
}

// ginZapLogger logs each request with method, path, status and latency.
func ginZapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
