// Package http provides the HTTP API for seofix.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/remediate"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// Server exposes the remediation service over HTTP.
type Server struct {
	echo    *echo.Echo
	service remediate.Service
	creds   wpclient.Credentials
	siteID  string
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server. creds and siteID come from the
// service configuration; the API deliberately does not accept credentials
// over the wire.
func NewServer(service remediate.Service, creds wpclient.Credentials, siteID string, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("remediation service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9190,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		creds:   creds,
		siteID:  siteID,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/remediation/run", s.handleRun)
}

// RunRequest is the request body for POST /api/v1/remediation/run.
type RunRequest struct {
	SiteID  string            `json:"siteId,omitempty"`
	UserID  string            `json:"userId"`
	DryRun  bool              `json:"dryRun"`
	Options remediate.Options `json:"options"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRun executes one remediation run and returns the structured
// result.
func (s *Server) handleRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid remediation request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	siteID := req.SiteID
	if siteID == "" {
		siteID = s.siteID
	}
	if siteID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "siteId is required")
	}

	result, err := s.service.Run(c.Request().Context(), &remediate.RunRequest{
		SiteID:  siteID,
		UserID:  req.UserID,
		DryRun:  req.DryRun,
		Creds:   s.creds,
		Options: req.Options,
	})
	if err != nil {
		s.logger.Error("remediation run failed",
			zap.String("site_id", siteID),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
