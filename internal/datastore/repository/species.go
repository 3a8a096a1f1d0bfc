package repository

import (
	"context"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// SpeciesRepository handles the plant species catalog.
type SpeciesRepository interface {
	GetSpecies(ctx context.Context, id uint) (*entities.Species, error)
	GetByScientificName(ctx context.Context, scientificName string) (*entities.Species, error)
	// ListSpecies returns species ordered by common name.
	ListSpecies(ctx context.Context) ([]entities.Species, error)
	CreateSpecies(ctx context.Context, species *entities.Species) error
	// UpdateSpecies replaces the catalog fields of species.ID.
	UpdateSpecies(ctx context.Context, species *entities.Species) (*entities.Species, error)
	Count(ctx context.Context) (int64, error)
}
