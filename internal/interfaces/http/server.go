// Package http provides the HTTP adapter for the application layer.
// It translates JSON requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eddyoasis/procurement-workflow/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Mode         string
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config         ServerConfig
	httpServer     *http.Server
	router         *gin.Engine
	requisitions   service.RequisitionService
	purchaseOrders service.PurchaseOrderService
	thresholds     service.ThresholdService
	health         HealthFunc
	metrics        http.Handler
	logger         Logger
}

// Option configures optional server endpoints
type Option func(*Server)

// WithHealth serves component health on /health
func WithHealth(fn HealthFunc) Option {
	return func(s *Server) {
		s.health = fn
	}
}

// WithMetrics serves the given handler on /metrics
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	requisitions service.RequisitionService,
	purchaseOrders service.PurchaseOrderService,
	thresholds service.ThresholdService,
	logger Logger,
	opts ...Option,
) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	useJSONFieldNames()

	router := gin.New()

	server := &Server{
		config:         config,
		router:         router,
		requisitions:   requisitions,
		purchaseOrders: purchaseOrders,
		thresholds:     thresholds,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.requisitions, s.purchaseOrders, s.thresholds, s.health, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	// API routes
	api := s.router.Group("/api")
	{
		// Requisitions
		api.POST("/requisitions", handlers.CreateRequisition)
		api.GET("/requisitions", handlers.ListRequisitions)
		api.GET("/requisitions/:id", handlers.GetRequisition)
		api.POST("/requisitions/:id/submit", handlers.SubmitRequisition)
		api.POST("/requisitions/:id/decisions", handlers.RecordDecision)
		api.POST("/requisitions/:id/modification", handlers.RequestModification)
		api.GET("/requisitions/:id/steps", handlers.ListSteps)
		api.GET("/requisitions/:id/next-approvers", handlers.NextApprovers)
		api.GET("/requisitions/:id/audit-trail", handlers.AuditTrail)

		// Purchase orders
		api.GET("/requisitions/:id/purchase-order", handlers.GetPurchaseOrder)
		api.POST("/requisitions/:id/purchase-order/retry", handlers.RetryPurchaseOrder)

		// Thresholds and exchange rates
		api.GET("/config/thresholds", handlers.GetThresholds)
		api.PUT("/config/thresholds/:name", handlers.SetThreshold)
		api.GET("/config/exchange-rates/:currency", handlers.GetExchangeRate)
		api.PUT("/config/exchange-rates/:currency", handlers.SetExchangeRate)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
