// Package api implements the fieldwatch JSON endpoints on an Echo group.
package api

import (
	"crypto/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/dashboard"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
	"github.com/sarawakflora/fieldwatch/internal/readings"
	"github.com/sarawakflora/fieldwatch/internal/registry"
)

// GetLogger returns the api/v1 package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Dependencies are the services the controller serves requests from.
type Dependencies struct {
	Store     *datastore.Store
	Registry  *registry.Registry
	Ledger    *readings.Store
	Alerts    *alerting.Manager
	Ingestor  *pipeline.Ingestor
	Dashboard *dashboard.Aggregator
	Policy    *privacy.Policy
	Metrics   *observability.Metrics
}

// Controller owns the route handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	store     *datastore.Store
	registry  *registry.Registry
	ledger    *readings.Store
	alerts    *alerting.Manager
	ingestor  *pipeline.Ingestor
	dashboard *dashboard.Aggregator
	policy    *privacy.Policy
	metrics   *observability.Metrics

	logger    logger.Logger
	startTime time.Time
}

// New creates a controller and registers its routes under the configured
// base path.
func New(e *echo.Echo, settings *conf.Settings, deps *Dependencies) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group(strings.TrimRight(settings.WebServer.BasePath, "/")),
		Settings:  settings,
		store:     deps.Store,
		registry:  deps.Registry,
		ledger:    deps.Ledger,
		alerts:    deps.Alerts,
		ingestor:  deps.Ingestor,
		dashboard: deps.Dashboard,
		policy:    deps.Policy,
		metrics:   deps.Metrics,
		logger:    GetLogger(),
		startTime: time.Now(),
	}
	if c.policy == nil {
		c.policy = privacy.PolicyFromSettings(&settings.Privacy)
	}

	c.Group.Use(c.ViewerMiddleware)
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	g := c.Group
	operator := c.RequireOperator

	g.GET("/health", c.HealthCheck)
	if c.metrics != nil {
		g.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	g.POST("/sensor-data", c.PostSensorData)
	g.GET("/sensor-readings", c.ListReadings)
	g.GET("/sensor-readings/device/:device_id", c.DeviceReadings)
	g.GET("/sensor-readings/device/:device_id/history", c.DeviceHistory)

	g.GET("/alerts", c.ListAlerts)
	g.GET("/alerts/:id", c.GetAlert)
	g.PATCH("/alerts/:id/resolve", c.ResolveAlert, operator)
	g.POST("/alerts/device/:device_id/resolve-all", c.ResolveAllForDevice, operator)

	g.GET("/sensor-devices", c.ListDevices)
	g.GET("/sensor-devices/:id", c.GetDevice)
	g.POST("/sensor-devices", c.RegisterDevice, operator)
	g.PUT("/sensor-devices/:id", c.UpdateDevice, operator)
	g.POST("/sensor-devices/:id/deactivate", c.DeactivateDevice, operator)

	g.GET("/species", c.ListSpecies)
	g.GET("/species/:id", c.GetSpecies)
	g.POST("/species", c.CreateSpecies, operator)
	g.PUT("/species/:id", c.UpdateSpecies, operator)

	g.GET("/plant-observations", c.ListObservations)
	g.GET("/plant-observations/:id", c.GetObservation)
	g.POST("/plant-observations", c.CreateObservation)
	g.PUT("/plant-observations/:id", c.UpdateObservation, operator)
	g.PATCH("/plant-observations/:id/mask", c.MaskObservation, operator)

	g.GET("/dashboard/fleet", c.FleetView)
	g.GET("/dashboard/devices/:device_id", c.DeviceView)
	g.GET("/dashboard/stats", c.Stats)
}

// MessageResponse acknowledges a create.
type MessageResponse struct {
	Message string `json:"message"`
	ID      any    `json:"id"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
	Type          string `json:"type,omitempty"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = privacy.ScrubMessage(err.Error())
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates an 8 character identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError writes an error reply and logs it with its correlation id.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	return c.writeError(ctx, resp, err)
}

func (c *Controller) writeError(ctx echo.Context, resp *ErrorResponse, err error) error {
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", resp.Message),
		logger.Int("code", resp.Code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if resp.Code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API error", fields...)
	}
	return ctx.JSON(resp.Code, resp)
}

// requestFields are the log fields of an operator mutation.
func requestFields(ctx echo.Context, deviceID string) []logger.Field {
	return []logger.Field{
		logger.String("device_id", deviceID),
		logger.String("actor", actorOf(ctx)),
		logger.String("ip", ctx.RealIP()),
	}
}

// parseLimit reads the optional limit query parameter.
func parseLimit(ctx echo.Context) (int, error) {
	raw := ctx.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf("limit must be a non-negative integer").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return n, nil
}

// parseID reads a numeric path parameter.
func parseID(ctx echo.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
