// Package server provides the HTTP API for reasond.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reasond/internal/engine"
	"github.com/fyrsmithlabs/reasond/internal/graph"
)

// Server exposes the reasoning engine over HTTP.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	graph  graph.Store
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server around an engine and its graph store.
func NewServer(eng *engine.Engine, store graph.Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("graph store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9210}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		engine: eng,
		graph:  store,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/tasks", s.handleTask)
	v1.DELETE("/tasks/:id", s.handleCancel)
	v1.GET("/graph/stats", s.handleGraphStats)
	v1.GET("/summary", s.handleSummary)
}

// TaskRequest is the request body for POST /api/v1/tasks.
type TaskRequest struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type,omitempty"`
	Entities    []string `json:"entities"`
	Description string   `json:"description,omitempty"`
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTask(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Entities) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "entities are required"})
	}

	task := engine.Task{
		ID:          req.ID,
		Type:        engine.TaskType(req.Type),
		Entities:    req.Entities,
		Description: req.Description,
	}

	res, err := s.engine.ProcessTask(c.Request().Context(), task)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateTask):
			return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		case errors.Is(err, engine.ErrUnknownTaskType), errors.Is(err, engine.ErrTooFewEntities):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, context.Canceled):
			// Client went away mid-task.
			return c.NoContent(http.StatusNoContent)
		default:
			s.logger.Error("task processing failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "task processing failed"})
		}
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleCancel(c echo.Context) error {
	id := c.Param("id")
	if !s.engine.State().Cancel(id) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no cancellable task with that id"})
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleGraphStats(c echo.Context) error {
	stats, err := s.graph.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("graph stats failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "stats unavailable"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Summary())
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("http server starting", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
