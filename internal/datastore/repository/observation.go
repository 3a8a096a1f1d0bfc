package repository

import (
	"context"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// ObservationUpdate carries the review fields of an observation. Nil
// fields are left unchanged.
type ObservationUpdate struct {
	Status *string
	Notes  *string
}

// ObservationRepository handles plant observation records.
type ObservationRepository interface {
	GetObservation(ctx context.Context, id uint) (*entities.Observation, error)
	// ListObservations returns observations newest first; limit <= 0 means all.
	ListObservations(ctx context.Context, limit int) ([]entities.Observation, error)
	CreateObservation(ctx context.Context, obs *entities.Observation) error
	SetMasked(ctx context.Context, id uint, masked bool) (*entities.Observation, error)
	// UpdateObservation changes the review fields set in u and returns the
	// stored observation.
	UpdateObservation(ctx context.Context, id uint, u ObservationUpdate) (*entities.Observation, error)
	Count(ctx context.Context) (int64, error)
}
