package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sgttomas/chirality-semantic-framework/internal/application/pipeline"
	"github.com/sgttomas/chirality-semantic-framework/internal/application/workers"
	"github.com/sgttomas/chirality-semantic-framework/internal/config"
	"github.com/sgttomas/chirality-semantic-framework/internal/matrices"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
	eventsmem "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/events/memory"
	eventsredis "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/events/redis"
	graphneo4j "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/graph/neo4j"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/metrics/prometheus"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/resolver"
	runstoremem "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/runstore/memory"
	runstoreredis "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/runstore/redis"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/trace/jsonl"
	"github.com/sgttomas/chirality-semantic-framework/pkg/api/http"
	"github.com/sgttomas/chirality-semantic-framework/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting chirality semantic calculator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()
	sessionID := uuid.New().String()

	// Redis client, only when a backend needs it
	var redisClient *goredis.Client
	if cfg.Events.Backend == "redis" || cfg.Store.Backend == "redis" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	metricsCollector := prometheus.NewCollector()

	// Event bus
	var eventBus ports.EventBus
	if cfg.Events.Backend == "redis" {
		eventBus = eventsredis.NewStreamsBus(
			redisClient,
			"chirality-workers",
			fmt.Sprintf("chirality-%d", os.Getpid()),
			logger,
		)
	} else {
		eventBus = eventsmem.NewBus()
	}

	// Run store
	var runStore ports.RunStore
	if cfg.Store.Backend == "redis" {
		runStore = runstoreredis.NewStore(redisClient, cfg.Store.TTL, logger)
	} else {
		runStore = runstoremem.NewStore()
	}

	// Semantic resolver
	res, err := resolver.New(&resolver.Config{
		Provider:       cfg.Resolver.Provider,
		APIKey:         cfg.Resolver.APIKey,
		Model:          cfg.Resolver.Model,
		MaxTokens:      cfg.Resolver.MaxTokens,
		MaxRetries:     cfg.Resolver.MaxRetries,
		RequestTimeout: cfg.Resolver.RequestTimeout,
		Metrics:        metricsCollector,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create resolver", zap.Error(err))
	}

	// Trace sink
	var tracer ports.TraceSink
	if cfg.Trace.Enabled {
		tracer, err = jsonl.New(cfg.Trace.Dir, sessionID, "valley", logger, jsonl.Options{
			MaxFileBytes:   cfg.Trace.MaxFileBytes,
			DedupeCapacity: cfg.Trace.DedupeCapacity,
			Metrics:        metricsCollector,
		})
		if err != nil {
			logger.Fatal("failed to open trace sink", zap.Error(err))
		}
	}

	// Graph exporter
	var exporter ports.GraphExporter
	if cfg.Export.Enabled {
		exporter, err = graphneo4j.New(ctx, graphneo4j.Config{
			URI:      cfg.Export.URI,
			User:     cfg.Export.User,
			Password: cfg.Export.Password,
			Metrics:  metricsCollector,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create neo4j exporter", zap.Error(err))
		}
	}

	// Application components
	orch := pipeline.NewOrchestrator(
		res,
		tracer,
		exporter,
		eventBus,
		metricsCollector,
		logger,
		matrices.ValleySummary,
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueDepth,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	runner := pipeline.NewRunner(
		orch,
		workerPool,
		runStore,
		eventBus,
		metricsCollector,
		logger,
		pipeline.RunnerOptions{
			SessionID:   sessionID,
			StrictSinks: cfg.StrictSinks,
			RunTimeout:  cfg.Timeouts.RunTimeout,
			CellTimeout: cfg.Timeouts.CellTimeout,
		},
	)

	// HTTP API
	httpServer := http.NewServer(&http.Config{
		Port:           cfg.HTTPPort,
		Runner:         runner,
		Logger:         logger,
		DefaultProblem: cfg.DefaultProblem,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("chirality semantic calculator started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("session_id", sessionID),
		zap.String("resolver", cfg.Resolver.Provider),
		zap.Bool("trace", cfg.Trace.Enabled),
		zap.Bool("neo4j_export", cfg.Export.Enabled),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error("runner shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	// Sinks close after the pool drains so no in-flight cell writes race
	// the close.
	if tracer != nil {
		if err := tracer.Close(); err != nil {
			logger.Error("trace sink close error", zap.Error(err))
		}
	}
	if exporter != nil {
		if err := exporter.Close(shutdownCtx); err != nil {
			logger.Error("exporter close error", zap.Error(err))
		}
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("chirality semantic calculator shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
