// Package http exposes the search API plus health, readiness, and metrics
// endpoints.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/observability"
	"github.com/floodwatch/flood-search-service/internal/search"
)

// Searcher runs one flood lookup.
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) (search.Response, error)
}

// ReadinessChecker reports whether a component is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the search API over HTTP.
type Server struct {
	httpServer *http.Server
	searcher   Searcher
	checkers   []ReadinessChecker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer builds the gin router and wraps it in an http.Server. checkers
// feed /readyz; all must pass for the service to report ready.
func NewServer(addr string, searcher Searcher, checkers []ReadinessChecker, logger *slog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		searcher: searcher,
		checkers: checkers,
		logger:   logger,
		metrics:  metrics,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestID())
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}))

	engine.POST("/api/v1/search", s.handleSearch)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/readyz", s.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Wire types.

type searchRequest struct {
	SearchLocation struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Address   string  `json:"address"`
	} `json:"searchLocation"`
	SearchRadius float64 `json:"searchRadius"`
}

type searchResponse struct {
	Success bool `json:"success"`
	search.Response
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.SearchRequests.WithLabelValues("error").Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	q := domain.SearchQuery{
		Lat:     req.SearchLocation.Latitude,
		Lng:     req.SearchLocation.Longitude,
		Address: req.SearchLocation.Address,
		RadiusM: req.SearchRadius,
	}

	resp, err := s.searcher.Search(c.Request.Context(), q)
	switch {
	case errors.Is(err, search.ErrInvalidInput):
		s.metrics.SearchRequests.WithLabelValues("error").Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("search failed",
			"error", err, "request_id", c.GetString(requestIDKey))
		s.metrics.SearchRequests.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, searchResponse{Success: true, Response: resp})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, checker := range s.checkers {
		if err := checker.CheckReadiness(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

const requestIDKey = "request_id"

// requestID tags every request with an ID for log correlation, honoring an
// inbound X-Request-ID when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
