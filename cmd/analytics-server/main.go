package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hitwatch/request-analytics/internal/analytics"
	"github.com/hitwatch/request-analytics/internal/botdetect"
	"github.com/hitwatch/request-analytics/internal/capture"
	"github.com/hitwatch/request-analytics/internal/config"
	"github.com/hitwatch/request-analytics/internal/event"
	"github.com/hitwatch/request-analytics/internal/geo"
	"github.com/hitwatch/request-analytics/internal/privacy"
	"github.com/hitwatch/request-analytics/pkg/cache"
	"github.com/hitwatch/request-analytics/pkg/kafka"
	"github.com/hitwatch/request-analytics/pkg/logger"
	"github.com/hitwatch/request-analytics/pkg/postgres"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "analytics-server")
	log.Info("Starting Analytics Server",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("queue_enabled", cfg.Queue.Enabled),
	)

	db, err := postgres.New(postgres.Config{
		DSN:             cfg.Postgres.PostgresDSN(),
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	var producer *kafka.Producer
	if cfg.Queue.Enabled {
		producer, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			Retries:          cfg.Kafka.ProducerRetries,
			Timeout:          cfg.Kafka.ProducerTimeout,
			RequiredAcks:     cfg.Kafka.RequiredAcks,
			Compression:      cfg.Kafka.CompressionType,
			IdempotentWrites: cfg.Kafka.IdempotentWrites,
			MaxMessageBytes:  cfg.Kafka.MaxMessageBytes,
		}, log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		defer producer.Close()
	}

	store := event.NewStore(db, cfg.Postgres.Table, log)

	var recorder *event.Service
	if producer != nil {
		recorder = event.NewService(store, producer, true, log)
	} else {
		recorder = event.NewService(store, nil, false, log)
	}

	geoCache := cache.New()
	resolver := geo.NewResolver(cfg.Geolocation, geoCache, log)

	// The dashboard's own routes are never captured, on top of whatever is
	// configured.
	ignorePaths := append([]string{
		cfg.Dashboard.Pathname,
		cfg.Dashboard.Pathname + "/*",
	}, cfg.Capture.IgnorePaths...)

	pipeline := capture.NewPipeline(
		cfg.Capture.Bots,
		privacy.NewGate(cfg.Privacy.AnonymizeIP, cfg.Privacy.RespectDNT),
		botdetect.NewDetector(),
		capture.NewIgnorePathMatcher(ignorePaths),
		resolver,
		log,
	)

	analyticsService := analytics.NewService(store, cfg.Cache.TTL, log)
	analyticsHandler := analytics.NewHandler(analyticsService, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(captureDispatch(cfg.Capture, pipeline, recorder, log))

	analyticsHandler.RegisterRoutes(router, cfg.Dashboard.Pathname)

	router.GET("/health", func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Pruning.Enabled {
		go runPruning(ctx, recorder, cfg.Pruning, log)
	}

	go runCacheCleanup(ctx, geoCache)

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down HTTP server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown timed out", zap.Error(err))
	}
	log.Info("Analytics Server stopped")
}

// captureDispatch sends /api traffic through the api capture hook and
// everything else through the web one, honoring the per-category toggles.
func captureDispatch(cfg config.CaptureConfig, pipeline *capture.Pipeline, recorder *event.Service, log *zap.Logger) gin.HandlerFunc {
	webMW := capture.WebMiddleware(pipeline, recorder, log)
	apiMW := capture.APIMiddleware(pipeline, recorder, log)

	return func(c *gin.Context) {
		isAPI := strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/api"

		switch {
		case isAPI && cfg.API:
			apiMW(c)
		case !isAPI && cfg.Web:
			webMW(c)
		default:
			c.Next()
		}
	}
}

func runPruning(ctx context.Context, recorder *event.Service, cfg config.PruningConfig, log *zap.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := recorder.Prune(ctx, cfg.Days); err != nil {
				log.Error("Pruning run failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func runCacheCleanup(ctx context.Context, c *cache.Cache) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
