package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/chatrelay/internal/application/airline"
	"github.com/aescanero/chatrelay/internal/application/workers"
	"github.com/aescanero/chatrelay/internal/config"
	eventsmemory "github.com/aescanero/chatrelay/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/chatrelay/pkg/adapters/events/redis"
	"github.com/aescanero/chatrelay/pkg/adapters/llm"
	"github.com/aescanero/chatrelay/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/chatrelay/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/chatrelay/pkg/adapters/storage/redis"
	"github.com/aescanero/chatrelay/pkg/api/grpc"
	"github.com/aescanero/chatrelay/pkg/api/http"
	"github.com/aescanero/chatrelay/pkg/api/websocket"
	"github.com/aescanero/chatrelay/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting chat relay",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Metrics
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := prometheus.NewCollector(registry)

	// Initialize adapters
	ctx := context.Background()
	var (
		threadStore ports.ThreadStore
		updateBus   ports.UpdateBus
		redisClient *goredis.Client
	)

	switch cfg.StoreBackend {
	case "redis":
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

		// Test Redis connection
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		threadStore = storageredis.NewThreadStorage(redisClient, cfg.Threads.TTL, logger)
		updateBus = eventsredis.NewStreamsUpdateBus(redisClient, cfg.Redis.StreamMaxLen, logger)
	default:
		threadStore = storagememory.NewThreadStorage()
		updateBus = eventsmemory.NewUpdateBus(logger)
	}

	llmClient, err := llm.NewClient(&llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.DefaultModel,
		MaxTokens:   cfg.LLM.DefaultMaxTokens,
		Temperature: cfg.LLM.DefaultTemperature,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// The delegate is built once and shared by every endpoint
	chatServer := airline.NewServer(
		threadStore,
		updateBus,
		llmClient,
		workerPool,
		metricsCollector,
		airline.NewValidator(cfg.Threads.MaxInputChars),
		logger,
	)
	if err := chatServer.Start(ctx); err != nil {
		logger.Fatal("failed to start chat server", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Addr:           cfg.GetHTTPAddr(),
		Server:         chatServer,
		Logger:         logger,
		Metrics:        metricsCollector,
		Gatherer:       registry,
		AllowedOrigins: cfg.AllowedOrigins,
		Transcript:     os.Stdout,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(chatServer, cfg.AllowedOrigins, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Addr:   cfg.GetGRPCAddr(),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	// gRPC health follows the turn workers
	grpcServer.SetServing(workerPool.Health().IsHealthy())
	workerPool.Health().OnChange(grpcServer.SetServing)

	logger.Info("chat relay started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	workerPool.Health().OnChange(nil)
	grpcServer.SetServing(false)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := chatServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("chat server shutdown error", zap.Error(err))
	}

	if err := updateBus.Close(); err != nil {
		logger.Error("update bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("chat relay shut down complete")
}

// initLogger initializes the logger based on log level. A non-empty file
// adds a rotating JSON log next to stdout.
func initLogger(level, file string) *zap.Logger {
	config := loggerConfig(level)

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	if file == "" {
		return logger
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(config.EncoderConfig), rotating, config.Level)

	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
}

// loggerConfig is the production config writing to stdout
func loggerConfig(level string) zap.Config {
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
	config.OutputPaths = []string{"stdout"}

	return config
}
