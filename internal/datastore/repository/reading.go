package repository

import (
	"context"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// ReadingPage selects one ascending page of a device's readings.
type ReadingPage struct {
	From time.Time // inclusive lower bound, zero for unbounded
	To   time.Time // exclusive upper bound, zero for unbounded

	// Keyset cursor: the page starts after (AfterTimestamp, AfterID), or at
	// it when Inclusive is set. A zero AfterID starts at the first row.
	AfterTimestamp time.Time
	AfterID        uint
	Inclusive      bool

	Limit int
}

// ReadingRepository handles the append-only reading ledger.
type ReadingRepository interface {
	CreateReading(ctx context.Context, reading *entities.Reading) error
	GetReading(ctx context.Context, id uint) (*entities.Reading, error)
	// Latest returns the reading with the newest capture timestamp.
	Latest(ctx context.Context, deviceID string) (*entities.Reading, error)
	// Page returns readings ordered by (reading_timestamp, reading_id) ascending.
	Page(ctx context.Context, deviceID string, page ReadingPage) ([]entities.Reading, error)
	// NthNewest returns the n-th newest reading captured before `before`
	// (zero for no bound), or ErrReadingNotFound when fewer exist.
	NthNewest(ctx context.Context, deviceID string, n int, before time.Time) (*entities.Reading, error)
	// ListNewest returns readings newest first; an empty deviceID lists all devices.
	ListNewest(ctx context.Context, deviceID string, limit int) ([]entities.Reading, error)
	// NewestEvaluatedAt returns the capture time of the newest evaluated
	// reading of a device; ok is false when none has been evaluated.
	NewestEvaluatedAt(ctx context.Context, deviceID string) (ts time.Time, ok bool, err error)
	// ListUnevaluated returns readings still awaiting evaluation, oldest first.
	ListUnevaluated(ctx context.Context, limit int) ([]entities.Reading, error)
	Count(ctx context.Context) (int64, error)
}
