// Package api serves the read-only status surface of a running grabber.
package api

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/logging"
	"github.com/ttvsnap/ttvsnap/internal/metrics"
	"github.com/ttvsnap/ttvsnap/internal/models"
	"github.com/ttvsnap/ttvsnap/internal/store"
)

const (
	defaultCaptureLimit = 20
	maxCaptureLimit     = 500
)

// StatusProvider exposes the grabber state.
type StatusProvider interface {
	Status() models.GrabStatus
}

// Server represents the HTTP status server
type Server struct {
	router          *gin.Engine
	status          StatusProvider
	captures        store.CaptureStore
	metrics         *metrics.Metrics
	logger          *logging.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new status server. captures may be nil.
func NewServer(status StatusProvider, captures store.CaptureStore, m *metrics.Metrics, logger *logging.Logger, shutdownTimeout time.Duration) *Server {
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = logging.Discard()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	server := &Server{
		router:          gin.New(),
		status:          status,
		captures:        captures,
		metrics:         m,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	if m != nil {
		server.router.Use(metrics.Middleware(m, logger))
	}
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.DebugWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/captures", s.handleCaptures)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.httpServer = NewHTTPServer(ln.Addr().String(), s.router)
	s.logger.Info("starting status server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return &errors.ErrServerStart{Addr: ln.Addr().String(), Err: err}
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down status server")
	if err := GracefulShutdown(s.httpServer, s.shutdownTimeout); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleStatus returns the grabber snapshot
func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "grabber not running"})
		return
	}
	c.JSON(http.StatusOK, s.status.Status())
}

// handleCaptures lists journal entries, newest first
func (s *Server) handleCaptures(c *gin.Context) {
	if s.captures == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "capture journal disabled"})
		return
	}

	limit := defaultCaptureLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxCaptureLimit)
	}

	list, err := s.captures.List(c.Request.Context(), c.Query("channel"), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list captures"})
		return
	}
	if list == nil {
		list = []*models.Capture{}
	}

	c.JSON(http.StatusOK, gin.H{
		"captures": list,
		"count":    len(list),
	})
}
