package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// SpeciesRequest is the body of species creation and update.
type SpeciesRequest struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
	IsEndangered   bool   `json:"is_endangered"`
	Description    string `json:"description"`
	ImageURL       string `json:"image_url"`
}

// ListSpecies returns the species catalog.
func (c *Controller) ListSpecies(ctx echo.Context) error {
	list, err := c.registry.AllSpecies(ctx.Request().Context())
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	if list == nil {
		list = []entities.Species{}
	}
	return ctx.JSON(http.StatusOK, list)
}

// GetSpecies returns one species.
func (c *Controller) GetSpecies(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid species id")
	}
	species, err := c.registry.Species(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, species)
}

func (r *SpeciesRequest) species() *entities.Species {
	return &entities.Species{
		ScientificName: strings.TrimSpace(r.ScientificName),
		CommonName:     strings.TrimSpace(r.CommonName),
		IsEndangered:   r.IsEndangered,
		Description:    r.Description,
		ImageURL:       strings.TrimSpace(r.ImageURL),
	}
}

// CreateSpecies adds a species to the catalog.
func (c *Controller) CreateSpecies(ctx echo.Context) error {
	var req SpeciesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, err, "Invalid species payload")
	}
	species := req.species()
	if species.ScientificName == "" {
		return c.badRequest(ctx, nil, "scientific_name is required")
	}

	if err := c.store.Species.CreateSpecies(ctx.Request().Context(), species); err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.registry.InvalidateSpecies(species.ID)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Species created", ID: species.ID})
}

// UpdateSpecies replaces a catalog entry. The cached copy is dropped so a
// change of endangered status governs masking from the next request on.
func (c *Controller) UpdateSpecies(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.badRequest(ctx, nil, "Invalid species id")
	}
	var req SpeciesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, err, "Invalid species payload")
	}
	species := req.species()
	species.ID = id
	if species.ScientificName == "" {
		return c.badRequest(ctx, nil, "scientific_name is required")
	}

	updated, err := c.store.Species.UpdateSpecies(ctx.Request().Context(), species)
	if err != nil {
		return c.HandleDomainError(ctx, err)
	}
	c.registry.InvalidateSpecies(id)
	c.logger.Info("species updated",
		logger.Uint64("species_id", uint64(id)),
		logger.Bool("is_endangered", updated.IsEndangered),
		logger.String("actor", actorOf(ctx)))
	return ctx.JSON(http.StatusOK, updated)
}
