// Package api implements the JSON HTTP API for the SnakeGuard pipeline.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/snakeguard/snakeguard-go/internal/classify"
	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/errors"
	"github.com/snakeguard/snakeguard-go/internal/logging"
	"github.com/snakeguard/snakeguard-go/internal/notify"
	"github.com/snakeguard/snakeguard-go/internal/observability"
	"github.com/snakeguard/snakeguard-go/internal/pipeline"
	"github.com/snakeguard/snakeguard-go/internal/playbook"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	Processor  *pipeline.Processor
	Poller     *pipeline.Poller
	Classifier *classify.Adapter
	Resolver   *playbook.Resolver
	Manager    *playbook.Manager
	Notifier   *notify.Engine
	Runtime    *pipeline.SettingsCache

	metrics     *observability.Metrics
	logger      *slog.Logger
	loggerClose func() error
	startTime   time.Time
}

// ErrorResponse is the JSON error envelope for all API failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// New creates the API controller and registers all routes on the
// provided echo instance.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	proc *pipeline.Processor, poller *pipeline.Poller, classifier *classify.Adapter,
	resolver *playbook.Resolver, manager *playbook.Manager, notifier *notify.Engine,
	runtime *pipeline.SettingsCache, metrics *observability.Metrics) *Controller {

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		Processor:  proc,
		Poller:     poller,
		Classifier: classifier,
		Resolver:   resolver,
		Manager:    manager,
		Notifier:   notifier,
		Runtime:    runtime,
		metrics:    metrics,
		logger:     logging.ForService("api"),
		startTime:  time.Now(),
	}
	c.initLogger()

	e.Use(middleware.Recover())
	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

// initLogger attaches the rotating request log configured under
// main.log. On failure the controller keeps the shared structured
// logger.
func (c *Controller) initLogger() {
	cfg := c.Settings.Main.Log
	if !cfg.Enabled || cfg.Path == "" {
		return
	}

	level := slog.LevelInfo
	if c.Settings.Debug {
		level = slog.LevelDebug
	}
	fileLogger, closeFunc, err := logging.NewFileLogger(cfg.Path, "api", level, logging.FileConfig{
		MaxSizeMB:  cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAge,
	})
	if err != nil {
		c.logger.Warn("file logging unavailable, keeping stdout logger",
			slog.String("path", cfg.Path),
			slog.Any("error", err))
		return
	}
	c.logger = fileLogger
	c.loggerClose = closeFunc
}

// Close releases the controller's log writer.
func (c *Controller) Close() error {
	if c.loggerClose != nil {
		return c.loggerClose()
	}
	return nil
}

func (c *Controller) initRoutes() {
	g := c.Group

	g.GET("/health", c.Health)

	g.POST("/detections", c.IngestDetection)
	g.GET("/detections/:id", c.GetDetection)
	g.POST("/detections/:id/process", c.ProcessDetection)
	g.POST("/detections/:id/classify", c.ClassifyDetection)
	g.POST("/detections/:id/playbook", c.AssignPlaybook)
	g.POST("/detections/:id/notify", c.SendNotifications)
	g.GET("/detections/:id/assignment", c.GetAssignment)
	g.GET("/detections/:id/notifications", c.ListNotificationLogs)

	g.PATCH("/assignments/:id/steps", c.UpdateAssignmentSteps)
	g.PATCH("/assignments/:id/status", c.UpdateAssignmentStatus)

	g.POST("/poll", c.PollUnprocessed)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HandleError maps the error taxonomy onto HTTP status codes and
// returns the JSON envelope.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	code := statusForError(err)
	c.logger.Error("api error",
		slog.String("path", ctx.Request().URL.Path),
		slog.String("method", ctx.Request().Method),
		slog.Int("code", code),
		slog.String("message", message),
		slog.Any("error", err))
	return ctx.JSON(code, ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    code,
	})
}

func statusForError(err error) int {
	switch {
	case errors.HasCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	case errors.HasCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Health reports liveness and basic build info.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       c.Settings.Version,
		"uptimeSeconds": int64(time.Since(c.startTime).Seconds()),
	})
}

// parseID reads a positive integer path parameter.
func parseID(ctx echo.Context, name string) (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(ctx.Param(name), "%d", &id); err != nil || id == 0 {
		return 0, errors.Newf("invalid %s %q", name, ctx.Param(name)).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return id, nil
}
