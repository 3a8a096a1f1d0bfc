package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
	"github.com/sarawakflora/fieldwatch/internal/readings"
)

// SensorDataResponse acknowledges a stored reading.
type SensorDataResponse struct {
	Message        string `json:"message"`
	ID             uint   `json:"id"`
	AlertsOpened   int    `json:"alerts_opened"`
	AlertsResolved int    `json:"alerts_resolved"`
	// Evaluated is false when the reading was stored but its evaluation
	// was deferred to the background sweep.
	Evaluated bool `json:"evaluated"`
}

// PostSensorData stores one reading and evaluates it.
func (c *Controller) PostSensorData(ctx echo.Context) error {
	var payload pipeline.Payload
	if err := ctx.Bind(&payload); err != nil {
		// a metric of the wrong type fails here, before validation
		return c.HandleDomainError(ctx, errors.New(fmt.Errorf("%w: %w", readings.ErrInvalidReading, err)).
			Component("api").
			Category(errors.CategoryValidation).
			Build())
	}

	result, err := c.ingestor.Ingest(ctx.Request().Context(), pipeline.SourceHTTP, &payload)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	resp := SensorDataResponse{
		Message:   "Sensor reading stored",
		ID:        result.Reading.ID,
		Evaluated: result.EvaluationErr == nil,
	}
	if result.Outcome != nil {
		resp.AlertsOpened = len(result.Outcome.Opened)
		resp.AlertsResolved = len(result.Outcome.Resolved)
	}
	return ctx.JSON(http.StatusOK, resp)
}

// ListReadings returns the newest readings across all devices.
func (c *Controller) ListReadings(ctx echo.Context) error {
	limit, err := parseLimit(ctx)
	if err != nil {
		return c.badRequest(ctx, err, "Invalid limit")
	}
	reqCtx := ctx.Request().Context()

	list, err := c.ledger.RecentAll(reqCtx, limit)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	viewer := viewerOf(ctx)
	subjects := make(map[string]privacy.Subject)
	out := make([]*entities.Reading, 0, len(list))
	for i := range list {
		subject, ok := subjects[list[i].DeviceID]
		if !ok {
			subject, err = c.deviceSubject(ctx, list[i].DeviceID)
			if err != nil {
				return c.HandleDomainError(ctx, err)
			}
			subjects[list[i].DeviceID] = subject
		}
		out = append(out, c.policy.ProjectReading(&list[i], subject, viewer))
	}
	return ctx.JSON(http.StatusOK, out)
}

// DeviceReadings returns the newest readings of one device.
func (c *Controller) DeviceReadings(ctx echo.Context) error {
	deviceID := ctx.Param("device_id")
	limit, err := parseLimit(ctx)
	if err != nil {
		return c.badRequest(ctx, err, "Invalid limit")
	}

	list, err := c.ledger.Recent(ctx.Request().Context(), deviceID, limit)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	subject, err := c.deviceSubject(ctx, deviceID)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	viewer := viewerOf(ctx)
	out := make([]*entities.Reading, 0, len(list))
	for i := range list {
		out = append(out, c.policy.ProjectReading(&list[i], subject, viewer))
	}
	return ctx.JSON(http.StatusOK, out)
}

// DeviceHistory returns readings of one device in ascending time order.
// Query parameters from and to (RFC 3339) bound the range; limit caps the
// count.
func (c *Controller) DeviceHistory(ctx echo.Context) error {
	deviceID := ctx.Param("device_id")
	var w readings.Window
	var err error
	if w.Limit, err = parseLimit(ctx); err != nil {
		return c.badRequest(ctx, err, "Invalid limit")
	}
	if w.From, err = parseTime(ctx.QueryParam("from")); err != nil {
		return c.badRequest(ctx, err, "Invalid from timestamp")
	}
	if w.To, err = parseTime(ctx.QueryParam("to")); err != nil {
		return c.badRequest(ctx, err, "Invalid to timestamp")
	}

	subject, err := c.deviceSubject(ctx, deviceID)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	viewer := viewerOf(ctx)
	out := make([]*entities.Reading, 0)
	for r, err := range c.ledger.History(ctx.Request().Context(), deviceID, w) {
		if err != nil {
			return c.HandleDomainError(ctx, err)
		}
		out = append(out, c.policy.ProjectReading(r, subject, viewer))
	}
	return ctx.JSON(http.StatusOK, out)
}

// deviceSubject describes the registered location of a device.
func (c *Controller) deviceSubject(ctx echo.Context, deviceID string) (privacy.Subject, error) {
	reqCtx := ctx.Request().Context()
	device, err := c.registry.Device(reqCtx, deviceID)
	if err != nil {
		return privacy.Subject{}, err
	}
	species, err := c.registry.SpeciesOf(reqCtx, device)
	if err != nil {
		return privacy.Subject{}, err
	}
	return privacy.DeviceSubject(device, species), nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
