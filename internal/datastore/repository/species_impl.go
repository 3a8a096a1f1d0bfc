package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// speciesRepository implements SpeciesRepository.
type speciesRepository struct {
	db *gorm.DB
}

// NewSpeciesRepository creates a new SpeciesRepository.
func NewSpeciesRepository(db *gorm.DB) SpeciesRepository {
	return &speciesRepository{db: db}
}

func (r *speciesRepository) GetSpecies(ctx context.Context, id uint) (*entities.Species, error) {
	var species entities.Species
	if err := r.db.WithContext(ctx).First(&species, id).Error; err != nil {
		return nil, storeError(err, "get_species", ErrSpeciesNotFound)
	}
	return &species, nil
}

func (r *speciesRepository) GetByScientificName(ctx context.Context, scientificName string) (*entities.Species, error) {
	var species entities.Species
	err := r.db.WithContext(ctx).Where("scientific_name = ?", scientificName).First(&species).Error
	if err != nil {
		return nil, storeError(err, "get_species_by_name", ErrSpeciesNotFound)
	}
	return &species, nil
}

func (r *speciesRepository) ListSpecies(ctx context.Context) ([]entities.Species, error) {
	var species []entities.Species
	err := r.db.WithContext(ctx).Order("common_name ASC").Order("species_id ASC").Find(&species).Error
	if err != nil {
		return nil, storeError(err, "list_species", nil)
	}
	return species, nil
}

func (r *speciesRepository) CreateSpecies(ctx context.Context, species *entities.Species) error {
	if species.ScientificName == "" {
		return ErrInvalidInput
	}
	return storeError(r.db.WithContext(ctx).Create(species).Error, "create_species", nil)
}

func (r *speciesRepository) UpdateSpecies(ctx context.Context, species *entities.Species) (*entities.Species, error) {
	if species.ID == 0 || species.ScientificName == "" {
		return nil, ErrInvalidInput
	}
	if _, err := r.GetSpecies(ctx, species.ID); err != nil {
		return nil, err
	}

	err := r.db.WithContext(ctx).Model(&entities.Species{}).
		Where("species_id = ?", species.ID).
		Updates(map[string]any{
			"scientific_name": species.ScientificName,
			"common_name":     species.CommonName,
			"is_endangered":   species.IsEndangered,
			"description":     species.Description,
			"image_url":       species.ImageURL,
		}).Error
	if err != nil {
		return nil, storeError(err, "update_species", nil)
	}
	return r.GetSpecies(ctx, species.ID)
}

func (r *speciesRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Species{}).Count(&count).Error
	return count, storeError(err, "count_species", nil)
}
