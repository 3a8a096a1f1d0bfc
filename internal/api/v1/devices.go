package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

// DeviceResponse is a device with its location projected for the viewer.
type DeviceResponse struct {
	entities.Device
	Region         string `json:"region,omitempty"`
	LocationHidden bool   `json:"location_hidden"`
}

// DeviceRequest is the body of device registration and update. Absent
// fields keep their stored value on update.
type DeviceRequest struct {
	DeviceID        string   `json:"device_id"`
	NodeID          *string  `json:"node_id"`
	Name            *string  `json:"device_name"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	LocationName    *string  `json:"location_name"`
	SpeciesID       *uint    `json:"species_id"`
	IsActive        *bool    `json:"is_active"`
	LocationMasked  *bool    `json:"location_masked"`
	MotionSensitive *bool    `json:"motion_sensitive"`
	TemperatureMin  *float64 `json:"temperature_min"`
	TemperatureMax  *float64 `json:"temperature_max"`
	HumidityMin     *float64 `json:"humidity_min"`
	HumidityMax     *float64 `json:"humidity_max"`
	SoilMoistureMin *float64 `json:"soil_moisture_min"`
	SoilMoistureMax *float64 `json:"soil_moisture_max"`
}

func (r *DeviceRequest) applyTo(d *entities.Device) {
	setString(&d.NodeID, r.NodeID)
	setString(&d.Name, r.Name)
	setString(&d.LocationName, r.LocationName)
	setBool(&d.IsActive, r.IsActive)
	setBool(&d.LocationMasked, r.LocationMasked)
	setBool(&d.MotionSensitive, r.MotionSensitive)
	if r.SpeciesID != nil {
		d.SpeciesID = r.SpeciesID
	}
	for _, f := range []struct {
		dst **float64
		src *float64
	}{
		{&d.Latitude, r.Latitude},
		{&d.Longitude, r.Longitude},
		{&d.TemperatureMin, r.TemperatureMin},
		{&d.TemperatureMax, r.TemperatureMax},
		{&d.HumidityMin, r.HumidityMin},
		{&d.HumidityMax, r.HumidityMax},
		{&d.SoilMoistureMin, r.SoilMoistureMin},
		{&d.SoilMoistureMax, r.SoilMoistureMax},
	} {
		if f.src != nil {
			*f.dst = f.src
		}
	}
}

func setString(dst, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setBool(dst, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// validateBands rejects inverted safe bands.
func validateBands(d *entities.Device) error {
	pairs := []struct {
		name     string
		min, max *float64
	}{
		{"temperature", d.TemperatureMin, d.TemperatureMax},
		{"humidity", d.HumidityMin, d.HumidityMax},
		{"soil_moisture", d.SoilMoistureMin, d.SoilMoistureMax},
	}
	for _, p := range pairs {
		if p.min != nil && p.max != nil && *p.min > *p.max {
			return errors.Newf("%s_min %.1f exceeds %s_max %.1f", p.name, *p.min, p.name, *p.max).
				Component("api").
				Category(errors.CategoryValidation).
				DeviceContext(d.DeviceID).
				Build()
		}
	}
	return nil
}

// projectDevice hides the registered location from viewers who may not see it.
func (c *Controller) projectDevice(ctx echo.Context, d *entities.Device) (*DeviceResponse, error) {
	species, err := c.registry.SpeciesOf(ctx.Request().Context(), d)
	if err != nil {
		return nil, err
	}
	subject := privacy.DeviceSubject(d, species)
	loc := c.policy.Project(subject, viewerOf(ctx))

	out := &DeviceResponse{Device: *d, Region: loc.Region}
	out.Latitude = loc.Latitude
	out.Longitude = loc.Longitude
	out.LocationName = loc.LocationName
	out.LocationHidden = !privacy.IsLocationVisible(subject)
	return out, nil
}

// ListDevices returns registered devices; active=true keeps active ones only.
func (c *Controller) ListDevices(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("active") == "true"
	list, err := c.registry.Devices(ctx.Request().Context(), activeOnly)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	out := make([]*DeviceResponse, 0, len(list))
	for i := range list {
		d, err := c.projectDevice(ctx, &list[i])
		if err != nil {
			return c.HandleDomainError(ctx, err)
		}
		out = append(out, d)
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetDevice returns one device.
func (c *Controller) GetDevice(ctx echo.Context) error {
	device, err := c.registry.Device(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	out, err := c.projectDevice(ctx, device)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, out)
}

// RegisterDevice registers a new device. Devices start active.
func (c *Controller) RegisterDevice(ctx echo.Context) error {
	var req DeviceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, err, "Invalid device payload")
	}
	device := &entities.Device{DeviceID: strings.TrimSpace(req.DeviceID), IsActive: true}
	req.applyTo(device)
	if device.DeviceID == "" || device.Name == "" {
		return c.badRequest(ctx, nil, "device_id and device_name are required")
	}
	if err := validateBands(device); err != nil {
		return c.HandleDomainError(ctx, err)
	}
	if err := c.checkSpecies(ctx, device.SpeciesID); err != nil {
		return c.HandleDomainError(ctx, err)
	}

	if err := c.store.Devices.CreateDevice(ctx.Request().Context(), device); err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.logger.Info("device registered", requestFields(ctx, device.DeviceID)...)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Device registered", ID: device.DeviceID})
}

// UpdateDevice changes a device's registration, bands, mask flag or
// activation.
func (c *Controller) UpdateDevice(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	device, err := c.registry.Device(reqCtx, ctx.Param("id"))
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	var req DeviceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, err, "Invalid device payload")
	}
	req.applyTo(device)
	if device.Name == "" {
		return c.badRequest(ctx, nil, "device_name must not be empty")
	}
	if err := validateBands(device); err != nil {
		return c.HandleDomainError(ctx, err)
	}
	if err := c.checkSpecies(ctx, device.SpeciesID); err != nil {
		return c.HandleDomainError(ctx, err)
	}

	if err := c.store.Devices.UpdateDevice(reqCtx, device); err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.logger.Info("device updated", requestFields(ctx, device.DeviceID)...)

	updated, err := c.registry.Device(reqCtx, device.DeviceID)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	out, err := c.projectDevice(ctx, updated)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, out)
}

// DeactivateDevice marks a device inactive. Its readings and alerts stay.
func (c *Controller) DeactivateDevice(ctx echo.Context) error {
	device, err := c.store.Devices.SetActive(ctx.Request().Context(), ctx.Param("id"), false)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.logger.Info("device deactivated", requestFields(ctx, device.DeviceID)...)
	out, err := c.projectDevice(ctx, device)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, out)
}

func (c *Controller) checkSpecies(ctx echo.Context, id *uint) error {
	if id == nil {
		return nil
	}
	_, err := c.registry.Species(ctx.Request().Context(), *id)
	return err
}
