package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrDeviceNotFound indicates the requested device does not exist.
	ErrDeviceNotFound = errors.NewStd("device not found")

	// ErrAlertNotFound indicates the requested alert does not exist.
	ErrAlertNotFound = errors.NewStd("alert not found")

	// ErrReadingNotFound indicates no reading matched the lookup.
	ErrReadingNotFound = errors.NewStd("reading not found")

	// ErrSpeciesNotFound indicates the requested species does not exist.
	ErrSpeciesNotFound = errors.NewStd("species not found")

	// ErrObservationNotFound indicates the requested observation does not exist.
	ErrObservationNotFound = errors.NewStd("observation not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")

	// ErrStoreUnavailable indicates a transient store failure. Operations
	// failing with it may be retried.
	ErrStoreUnavailable = errors.NewStd("store unavailable")

	// ErrConcurrencyConflict indicates the state a transition was computed
	// from changed before it could be applied.
	ErrConcurrencyConflict = errors.NewStd("concurrency conflict")
)

// storeError classifies a GORM error from operation. Not-found, duplicate
// key and foreign key errors map to their sentinels; cancellation passes through; anything
// else becomes a retryable ErrStoreUnavailable. A foreign key violation
// means the referenced device is missing.
func storeError(err error, operation string, notFound error) error {
	return classify(err, operation, notFound, ErrDeviceNotFound)
}

// referenceError is storeError for writes whose foreign key points at
// missing, such as a device or observation naming an unknown species.
func referenceError(err error, operation string, missing error) error {
	return classify(err, operation, nil, missing)
}

func classify(err error, operation string, notFound, missing error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.New(fmt.Errorf("%w: %w", missing, err)).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("operation", operation).
			Build()
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.New(fmt.Errorf("%w: %w", ErrDuplicateKey, err)).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("operation", operation).
			Build()
	case errors.Is(err, context.Canceled):
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryCancellation).
			Context("operation", operation).
			Build()
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)).
			Component("datastore").
			Category(errors.CategoryTimeout).
			Context("operation", operation).
			Build()
	default:
		return errors.New(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", operation).
			Build()
	}
}

// conflictError reports that the snapshot of a transition no longer holds.
func conflictError(operation, deviceID, detail string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrConcurrencyConflict, detail)).
		Component("datastore").
		Category(errors.CategoryConflict).
		DeviceContext(deviceID).
		Context("operation", operation).
		Build()
}

// normalizeTime converts t to the canonical stored form.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsConcurrencyConflict reports whether err is a lost transition race.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
