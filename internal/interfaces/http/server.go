// Package http exposes the invoice engine over a JSON API. Handlers are thin
// translations from requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthFunc reports whether the engine can serve requests, with details
type HealthFunc func(ctx context.Context) (bool, interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Dependencies are the services the API is built on. Webhook is optional.
type Dependencies struct {
	Invoices    service.InvoiceService
	Export      service.ExportService
	Health      HealthFunc
	Webhook     gin.HandlerFunc
	WebhookPath string
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates the HTTP server and registers its routes
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if config.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.setupRoutes()

	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps.Invoices, s.deps.Export, s.deps.Health, s.logger)

	s.router.GET("/health", h.HealthCheck)

	if s.deps.Webhook != nil {
		path := s.deps.WebhookPath
		if path == "" {
			path = "/webhook/extraction"
		}
		s.router.POST(path, s.deps.Webhook)
	}

	api := s.router.Group("/api")
	{
		api.POST("/invoices", h.ProcessInvoice)
		api.POST("/invoices/batch", h.ProcessBatch)
		api.GET("/invoices", h.ListInvoices)
		api.GET("/invoices/:id", h.GetInvoice)
		api.GET("/invoices/:id/audit", h.AuditTrail)
		api.POST("/invoices/:id/decision", h.Decide)

		api.GET("/approvals/pending", h.PendingApprovals)
		api.GET("/approvals/digest", h.ApprovalDigest)

		api.GET("/metrics", h.Metrics)
		api.GET("/statistics", h.Statistics)

		api.GET("/export/approved", h.ExportApproved)
		api.GET("/export/pending", h.ExportPending)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
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
