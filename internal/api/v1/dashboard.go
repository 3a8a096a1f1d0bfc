package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// FleetView returns the alerting and nominal device partitions. The filter
// query parameter narrows both.
func (c *Controller) FleetView(ctx echo.Context) error {
	view, err := c.dashboard.BuildFleetView(ctx.Request().Context(), ctx.QueryParam("filter"), viewerOf(ctx))
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, view)
}

// DeviceView returns the dashboard view of one device.
func (c *Controller) DeviceView(ctx echo.Context) error {
	view, err := c.dashboard.BuildDeviceView(ctx.Request().Context(), ctx.Param("device_id"), viewerOf(ctx))
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, view)
}

// Stats returns the fleet-wide totals.
func (c *Controller) Stats(ctx echo.Context) error {
	stats, err := c.dashboard.Stats(ctx.Request().Context())
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, stats)
}
