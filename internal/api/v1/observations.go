package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

// ObservationResponse is an observation with its location projected for
// the viewer.
type ObservationResponse struct {
	ID           uint      `json:"observation_id"`
	UserID       uint      `json:"user_id"`
	SpeciesID    uint      `json:"species_id"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	LocationName string    `json:"location_name,omitempty"`
	Region       string    `json:"region,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	IsMasked     bool      `json:"is_masked"`
	Masked       bool      `json:"masked"`
	CreatedAt    time.Time `json:"created_at"`
}

// ObservationRequest is the body of observation creation. Coordinates are
// accepted under both the short and the location_ prefixed keys.
type ObservationRequest struct {
	UserID            uint     `json:"user_id"`
	SpeciesID         uint     `json:"species_id"`
	PhotoURL          string   `json:"photo_url"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	LocationLatitude  *float64 `json:"location_latitude"`
	LocationLongitude *float64 `json:"location_longitude"`
	LocationName      string   `json:"location_name"`
	Notes             string   `json:"notes"`
	Source            string   `json:"source"`
	Status            string   `json:"status"`
}

// ObservationUpdateRequest is the body of an observation review. Absent
// fields keep their stored value.
type ObservationUpdateRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// MaskRequest toggles an observation's mask flag.
type MaskRequest struct {
	IsMasked *bool `json:"is_masked"`
}

func (r *ObservationRequest) coordinates() (lat, lon float64, err error) {
	latp, lonp := r.Latitude, r.Longitude
	if latp == nil {
		latp = r.LocationLatitude
	}
	if lonp == nil {
		lonp = r.LocationLongitude
	}
	if latp == nil || lonp == nil {
		return 0, 0, errors.Newf("latitude and longitude are required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if *latp < -90 || *latp > 90 || *lonp < -180 || *lonp > 180 {
		return 0, 0, errors.Newf("coordinates out of range").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return *latp, *lonp, nil
}

func (c *Controller) projectObservation(ctx echo.Context, o *entities.Observation) (*ObservationResponse, error) {
	species, err := c.registry.Species(ctx.Request().Context(), o.SpeciesID)
	if err != nil {
		return nil, err
	}
	loc := c.policy.Project(privacy.ObservationSubject(o, species), viewerOf(ctx))
	return &ObservationResponse{
		ID:           o.ID,
		UserID:       o.UserID,
		SpeciesID:    o.SpeciesID,
		PhotoURL:     o.PhotoURL,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		LocationName: loc.LocationName,
		Region:       loc.Region,
		Notes:        o.Notes,
		Source:       o.Source,
		Status:       o.Status,
		IsMasked:     o.IsMasked,
		Masked:       loc.Masked,
		CreatedAt:    o.CreatedAt,
	}, nil
}

// ListObservations returns observations newest first.
func (c *Controller) ListObservations(ctx echo.Context) error {
	limit, err := parseLimit(ctx)
	if err != nil {
		return c.badRequest(ctx, err, "Invalid limit")
	}
	list, err := c.store.Observations.ListObservations(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}

	out := make([]*ObservationResponse, 0, len(list))
	for i := range list {
		o, err := c.projectObservation(ctx, &list[i])
		if err != nil {
			return c.HandleDomainError(ctx, err)
		}
		out = append(out, o)
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetObservation returns one observation.
func (c *Controller) GetObservation(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid observation id")
	}
	obs, err := c.store.Observations.GetObservation(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	out, err := c.projectObservation(ctx, obs)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, out)
}

// CreateObservation records a sighting. New observations are unmasked.
func (c *Controller) CreateObservation(ctx echo.Context) error {
	var req ObservationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, err, "Invalid observation payload")
	}
	if req.SpeciesID == 0 {
		return c.badRequest(ctx, nil, "species_id is required")
	}
	lat, lon, err := req.coordinates()
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	reqCtx := ctx.Request().Context()
	if _, err := c.registry.Species(reqCtx, req.SpeciesID); err != nil {
		return c.HandleDomainError(ctx, err)
	}

	obs := &entities.Observation{
		UserID:       req.UserID,
		SpeciesID:    req.SpeciesID,
		PhotoURL:     strings.TrimSpace(req.PhotoURL),
		Latitude:     lat,
		Longitude:    lon,
		LocationName: strings.TrimSpace(req.LocationName),
		Notes:        req.Notes,
		Source:       strings.TrimSpace(req.Source),
		Status:       strings.TrimSpace(req.Status),
	}
	if err := c.store.Observations.CreateObservation(reqCtx, obs); err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Observation recorded", ID: obs.ID})
}

// MaskObservation sets or clears the mask flag of an observation.
func (c *Controller) MaskObservation(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid observation id")
	}
	masked := true
	var req MaskRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.badRequest(ctx, err, "Invalid mask payload")
		}
		if req.IsMasked != nil {
			masked = *req.IsMasked
		}
	}

	obs, err := c.store.Observations.SetMasked(ctx.Request().Context(), id, masked)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.logger.Info("observation mask changed",
		logger.Uint64("observation_id", uint64(id)),
		logger.Bool("is_masked", masked),
		logger.String("actor", actorOf(ctx)))

	out, err := c.projectObservation(ctx, obs)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, out)
}

// UpdateObservation records an operator's review of an observation.
func (c *Controller) UpdateObservation(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid observation id")
	}
	var req ObservationUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, err, "Invalid observation payload")
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if status == "" || len(status) > 20 {
			return c.badRequest(ctx, nil, "status must be 1 to 20 characters")
		}
		req.Status = &status
	}

	obs, err := c.store.Observations.UpdateObservation(ctx.Request().Context(), id, repository.ObservationUpdate{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.logger.Info("observation reviewed",
		logger.Uint64("observation_id", uint64(id)),
		logger.String("status", obs.Status),
		logger.String("actor", actorOf(ctx)))

	out, err := c.projectObservation(ctx, obs)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, out)
}
