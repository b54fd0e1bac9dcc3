package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP relay server
type Server struct {
	router     *gin.Engine
	handler    http.Handler
	server     *http.Server
	stop       context.CancelFunc
	delegate   chatkit.Server
	metrics    ports.MetricsCollector
	transcript io.Writer
	logger     *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Addr   string
	Server chatkit.Server
	Logger *zap.Logger

	// Metrics defaults to ports.NopMetrics
	Metrics ports.MetricsCollector

	// Gatherer backs /metrics, defaulting to the global registry
	Gatherer prometheus.Gatherer

	// AllowedOrigins may call the relay with credentials
	AllowedOrigins []string

	// Transcript receives streamed agent message text. Nil discards it.
	Transcript io.Writer
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	s := &Server{
		router:     router,
		delegate:   cfg.Server,
		metrics:    metrics,
		transcript: cfg.Transcript,
		logger:     cfg.Logger,
	}

	s.setupRoutes(cfg.Gatherer)
	s.handler = corsHandler(cfg.AllowedOrigins).Handler(router)

	// Request contexts derive from baseCtx so that open streams end when
	// shutdown begins instead of holding it until the deadline
	baseCtx, stop := context.WithCancel(context.Background())
	s.stop = stop

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	s.server.RegisterOnShutdown(stop)

	return s
}

// setupRoutes configures relay routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	} else {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	ck := s.router.Group("/chatkit")
	{
		ck.POST("", s.handleChatKit)
		ck.GET("/state", s.handleState)
		ck.GET("/bootstrap", s.handleBootstrap)
		ck.GET("/state/stream", s.handleStateStream)
	}
}

// SetupWebSocket adds the websocket state stream to the server
func (s *Server) SetupWebSocket(handler interface {
	HandleStateStream(*gin.Context)
}) {
	s.router.GET("/chatkit/state/ws", handler.HandleStateStream)
}

// Handler returns the root handler, CORS included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", listener.Addr().String()))

	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// ends state streams; Shutdown would otherwise wait for them
	s.stop()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
