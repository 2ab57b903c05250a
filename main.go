package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"quizfunnel/api/cache"
	"quizfunnel/api/database"
	"quizfunnel/api/handlers"
	"quizfunnel/api/middleware"
	"quizfunnel/api/store"
)

const (
	defaultRateLimit       = 100 // requests per window per IP, matching the original limiter
	defaultRateLimitWindow = time.Minute
)

func main() {
	// Load .env file at the very start.
	godotenv.Load()

	release := os.Getenv("GIN_MODE") == "release"
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	log := newLogger(release)
	defer log.Sync()

	// --- Initialize PostgreSQL (authoritative store) ---
	dbClient, err := database.NewPostgresDB(log)
	if err != nil {
		log.Fatal("Failed to initialize PostgreSQL database", zap.Error(err))
	}
	defer dbClient.Close()

	// --- Initialize stores ---
	quizStore := store.NewQuizStore(dbClient.DB, log)
	analyticsStore := store.NewAnalyticsStore(dbClient.DB, log)
	resultCache := cache.New()

	// --- Optional ClickHouse mirror ---
	var mirror *store.Mirror
	if database.MirrorConfigured() {
		chClient, chErr := database.NewClickHouseDB(log)
		if chErr != nil {
			log.Fatal("Failed to initialize ClickHouse mirror", zap.Error(chErr))
		}
		defer chClient.Close()

		mirror = store.NewMirror(
			&store.ClickHouseInserter{Conn: chClient.Conn},
			log,
			store.DefaultMirrorCapacity,
			store.DefaultMirrorFlushThreshold,
			store.DefaultMirrorFlushInterval,
		)
		mirror.Start()
		defer mirror.Stop()
	} else {
		log.Info("ClickHouse mirror disabled (CLICKHOUSE_HOST not set)")
	}

	// --- Initialize handlers ---
	trackHandlers := handlers.NewTrackHandlers(quizStore, mirror, log)
	analyticsHandlers := handlers.NewAnalyticsHandlers(analyticsStore, quizStore, resultCache, log)

	// done stops the rate limiter's cleanup goroutine on shutdown.
	done := make(chan struct{})
	defer close(done)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		tracking := api.Group("/")
		tracking.Use(middleware.RateLimiter(rateLimitPerWindow(log), defaultRateLimitWindow, done))
		{
			tracking.POST("/track", trackHandlers.TrackEvent)
			tracking.POST("/tracking/session/start", trackHandlers.StartSession)
			tracking.POST("/tracking/session/complete", trackHandlers.CompleteSession)
		}

		analytics := api.Group("/analytics")
		{
			analytics.GET("", analyticsHandlers.GetAnalytics)
			analytics.GET("/quizzes", analyticsHandlers.GetQuizzes)
			quiz := analytics.Group("/quiz/:quizId")
			{
				quiz.GET("/funnel", analyticsHandlers.GetQuizView(handlers.ViewFunnel))
				quiz.GET("/dropoffs", analyticsHandlers.GetQuizView(handlers.ViewDropOff))
				quiz.GET("/answers", analyticsHandlers.GetQuizView(handlers.ViewAnswers))
				quiz.GET("/stats", analyticsHandlers.GetQuizView(handlers.ViewStats))
				quiz.GET("/slides", analyticsHandlers.GetQuizView(handlers.ViewSlides))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Info("Quiz funnel API server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}

func newLogger(release bool) *zap.Logger {
	var log *zap.Logger
	var err error
	if release {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return log
}

func rateLimitPerWindow(log *zap.Logger) int {
	raw := os.Getenv("TRACK_RATE_LIMIT")
	if raw == "" {
		return defaultRateLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		log.Warn("Invalid TRACK_RATE_LIMIT, using default", zap.String("value", raw))
		return defaultRateLimit
	}
	return limit
}
