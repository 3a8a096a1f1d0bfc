package repository

import (
	"context"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// Alert status filter values.
const (
	AlertStatusOpen     = "open"
	AlertStatusResolved = "resolved"
)

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	DeviceID string
	Status   string // "", AlertStatusOpen or AlertStatusResolved
	Limit    int
}

// Transition is one atomic change of a device's alert state.
type Transition struct {
	DeviceID string

	// Open lists alerts to create. No open alert of the same type may
	// exist for the device when the transition is applied.
	Open []*entities.Alert

	// Resolve lists alerts that must still be open and are resolved.
	Resolve    []uint
	ResolvedAt time.Time
	ResolvedBy string
	Resolution string

	// ReadingID, when set, is marked evaluated in the same transaction,
	// and alert_generated when Open is non-empty.
	ReadingID uint
}

// TransitionResult carries the stored state of every alert a transition touched.
type TransitionResult struct {
	Opened   []*entities.Alert
	Resolved []*entities.Alert
}

// AlertRepository handles alert persistence.
type AlertRepository interface {
	GetAlert(ctx context.Context, id uint) (*entities.Alert, error)
	// ListAlerts returns alerts newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)
	// OpenAlerts returns a device's open alerts, oldest first.
	OpenAlerts(ctx context.Context, deviceID string) ([]entities.Alert, error)
	CountUnresolved(ctx context.Context) (int64, error)
	// ApplyTransition re-checks the snapshot the transition was computed
	// from and applies it in one transaction. ErrConcurrencyConflict is
	// returned, and nothing written, when the snapshot no longer holds.
	ApplyTransition(ctx context.Context, t *Transition) (*TransitionResult, error)
}
