package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
)

// AlertResolvedResponse is the reply of a single resolve.
type AlertResolvedResponse struct {
	Message string          `json:"message"`
	Alert   *entities.Alert `json:"alert"`
}

// AlertsResolvedResponse is the reply of a bulk resolve.
type AlertsResolvedResponse struct {
	Message  string            `json:"message"`
	Resolved int               `json:"resolved"`
	Alerts   []*entities.Alert `json:"alerts"`
}

// ListAlerts returns alerts newest first, optionally filtered by status
// (open or resolved) and device.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	limit, err := parseLimit(ctx)
	if err != nil {
		return c.badRequest(ctx, err, "Invalid limit")
	}
	status := strings.ToLower(strings.TrimSpace(ctx.QueryParam("status")))
	switch status {
	case "", repository.AlertStatusOpen, repository.AlertStatusResolved:
	default:
		return c.badRequest(ctx, errors.NewStd("status must be open or resolved"), "Invalid status filter")
	}

	list, err := c.store.Alerts.ListAlerts(ctx.Request().Context(), repository.AlertFilter{
		DeviceID: strings.TrimSpace(ctx.QueryParam("device_id")),
		Status:   status,
		Limit:    limit,
	})
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	if list == nil {
		list = []entities.Alert{}
	}
	return ctx.JSON(http.StatusOK, list)
}

// GetAlert returns one alert.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid alert id")
	}
	alert, err := c.store.Alerts.GetAlert(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// ResolveAlert resolves one alert. Resolving a resolved alert succeeds.
func (c *Controller) ResolveAlert(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid alert id")
	}
	alert, err := c.alerts.Resolve(ctx.Request().Context(), id, actorOf(ctx))
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, AlertResolvedResponse{Message: "Alert resolved", Alert: alert})
}

// ResolveAllForDevice resolves every open alert of a device.
func (c *Controller) ResolveAllForDevice(ctx echo.Context) error {
	deviceID := ctx.Param("device_id")
	resolved, err := c.alerts.ResolveAllForDevice(ctx.Request().Context(), deviceID, actorOf(ctx))
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	if resolved == nil {
		resolved = []*entities.Alert{}
	}
	return ctx.JSON(http.StatusOK, AlertsResolvedResponse{
		Message:  "Alerts resolved",
		Resolved: len(resolved),
		Alerts:   resolved,
	})
}
