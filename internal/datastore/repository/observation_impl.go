package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// observationRepository implements ObservationRepository.
type observationRepository struct {
	db *gorm.DB
}

// NewObservationRepository creates a new ObservationRepository.
func NewObservationRepository(db *gorm.DB) ObservationRepository {
	return &observationRepository{db: db}
}

func (r *observationRepository) GetObservation(ctx context.Context, id uint) (*entities.Observation, error) {
	var obs entities.Observation
	if err := r.db.WithContext(ctx).First(&obs, id).Error; err != nil {
		return nil, storeError(err, "get_observation", ErrObservationNotFound)
	}
	return &obs, nil
}

func (r *observationRepository) ListObservations(ctx context.Context, limit int) ([]entities.Observation, error) {
	var observations []entities.Observation
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("observation_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&observations).Error; err != nil {
		return nil, storeError(err, "list_observations", nil)
	}
	return observations, nil
}

func (r *observationRepository) CreateObservation(ctx context.Context, obs *entities.Observation) error {
	if obs.SpeciesID == 0 {
		return ErrInvalidInput
	}
	if obs.Source == "" {
		obs.Source = entities.ObservationSourceCamera
	}
	if obs.Status == "" {
		obs.Status = entities.ObservationStatusPending
	}
	return referenceError(r.db.WithContext(ctx).Create(obs).Error, "create_observation", ErrSpeciesNotFound)
}

func (r *observationRepository) SetMasked(ctx context.Context, id uint, masked bool) (*entities.Observation, error) {
	if _, err := r.GetObservation(ctx, id); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Model(&entities.Observation{}).
		Where("observation_id = ?", id).
		Update("is_masked", masked).Error
	if err != nil {
		return nil, storeError(err, "set_observation_masked", nil)
	}
	return r.GetObservation(ctx, id)
}

func (r *observationRepository) UpdateObservation(ctx context.Context, id uint, u ObservationUpdate) (*entities.Observation, error) {
	if u.Status != nil && *u.Status == "" {
		return nil, ErrInvalidInput
	}
	if _, err := r.GetObservation(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]any, 2)
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	if u.Notes != nil {
		fields["notes"] = *u.Notes
	}
	if len(fields) > 0 {
		err := r.db.WithContext(ctx).Model(&entities.Observation{}).
			Where("observation_id = ?", id).
			Updates(fields).Error
		if err != nil {
			return nil, storeError(err, "update_observation", nil)
		}
	}
	return r.GetObservation(ctx, id)
}

func (r *observationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Observation{}).Count(&count).Error
	return count, storeError(err, "count_observations", nil)
}
