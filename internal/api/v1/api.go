// Package api exposes visit aggregation over HTTP: one endpoint for JSON
// visit queries, one for the streamed CSV report, plus health and metrics.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
	"github.com/TheCacophonyProject/Full-Noise/internal/report"
	"github.com/TheCacophonyProject/Full-Noise/internal/visits"
)

// visitCacheTTL bounds how stale a cached visit query may be.
const visitCacheTTL = 30 * time.Second

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	engine    *visits.Engine
	assembler *report.Assembler

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLoggerClose func() error

	visitCache *cache.Cache
	metrics    *observability.Metrics
	startTime  time.Time
}

// New creates the API controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, m *observability.Metrics) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	assembler, err := report.NewAssembler(settings)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		engine:     visits.New(settings, ds, visitsMetricsFrom(m)),
		assembler:  assembler,
		logger:     logger,
		visitCache: cache.New(visitCacheTTL, 2*visitCacheTTL),
		metrics:    m,
		startTime:  time.Now(),
	}

	// Requests go to their own log file when one is configured; the
	// shared service logger is the fallback either way.
	c.apiLogger = logging.ForService("api")
	c.apiLoggerClose = func() error { return nil }
	if settings.WebServer.Log.Enabled && settings.WebServer.Log.Path != "" {
		fileLogger, closeFunc, err := logging.NewFileLogger(settings.WebServer.Log.Path, "api", slog.LevelInfo)
		if err != nil {
			logger.Printf("api log file unavailable, using the service log: %v", err)
		} else {
			c.apiLogger = fileLogger
			c.apiLoggerClose = closeFunc
		}
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())

	c.initRoutes()

	return c, nil
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.initVisitRoutes()

	// Operational endpoints live outside the versioned group.
	c.Echo.GET("/healthz", c.Health)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// LoggingMiddleware logs each request to the API log and records HTTP
// metrics against the route pattern rather than the raw path.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			elapsed := time.Since(start)

			if c.metrics != nil && c.metrics.HTTP != nil {
				path := ctx.Path()
				if path == "" {
					path = req.URL.Path
				}
				c.metrics.HTTP.RecordHTTPRequest(req.Method, path, res.Status, elapsed.Seconds())
				c.metrics.HTTP.RecordHTTPResponseSize(req.Method, path, res.Size)
				if res.Status >= http.StatusBadRequest {
					c.metrics.HTTP.RecordHTTPRequestError(req.Method, path, errorClass(err, res.Status))
				}
			}

			if c.apiLogger == nil {
				return err
			}
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", elapsed.Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "Request handled", attrs...)

			return err
		}
	}
}

// healthResponse is the JSON body of the health endpoint.
type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	BuildDate     string `json:"buildDate"`
	Timestamp     string `json:"timestamp"`
	Uptime        string `json:"uptime"`
	Database      string `json:"database"`
	DatabaseError string `json:"databaseError,omitempty"`
}

// Health reports service and database status. The ping doubles as the
// refresh of the connection pool gauges.
func (c *Controller) Health(ctx echo.Context) error {
	resp := healthResponse{
		Status:    "healthy",
		Version:   c.Settings.Version,
		BuildDate: c.Settings.BuildDate,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(c.startTime).String(),
		Database:  "connected",
	}

	if err := c.DS.Ping(ctx.Request().Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "disconnected"
		resp.DatabaseError = err.Error()
		return ctx.JSON(http.StatusServiceUnavailable, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}

// Shutdown releases controller resources during server shutdown.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("closing api log: %v", err)
		}
	}
	if c.visitCache != nil {
		c.visitCache.Flush()
	}
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlationId"`
}

// generateCorrelationID creates a short random identifier tying an error
// response to its log line.
func generateCorrelationID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "untracked"
	}
	return hex.EncodeToString(b[:])
}

// HandleError logs err under a correlation id and writes the JSON error
// response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.logger.Printf("request error [%s] from %s: %s: %v", resp.CorrelationID, ctx.RealIP(), message, err)
	if c.apiLogger != nil {
		c.apiLogger.Error("Request failed",
			"correlation_id", resp.CorrelationID,
			"message", message,
			"error", resp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, resp)
}

// recordOp records one handler operation outcome with its duration.
func (c *Controller) recordOp(handler, operation, status string, start time.Time) {
	if c.metrics == nil || c.metrics.HTTP == nil {
		return
	}
	c.metrics.HTTP.RecordHandlerOperation(handler, operation, status)
	c.metrics.HTTP.RecordHandlerOperationDuration(handler, operation, time.Since(start).Seconds())
}

// recordOpError records a failed handler operation together with the
// class of error that caused it.
func (c *Controller) recordOpError(handler, operation string, err error, start time.Time) {
	c.recordOp(handler, operation, metrics.LabelError, start)
	if c.metrics == nil || c.metrics.HTTP == nil {
		return
	}
	c.metrics.HTTP.RecordHandlerOperationError(handler, operation, errorClass(err, http.StatusInternalServerError))
}

// errorClass labels a failure for metrics, preferring the error's own
// category over the bare status class.
func errorClass(err error, status int) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != "" {
		return string(ee.Category)
	}
	if status >= http.StatusInternalServerError {
		return "server"
	}
	return "client"
}
