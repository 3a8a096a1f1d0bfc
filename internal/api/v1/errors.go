package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/readings"
)

// Error types reported in ErrorResponse.Type.
const (
	TypeUnknownDevice       = "UnknownDevice"
	TypeUnknownAlert        = "UnknownAlert"
	TypeNotFound            = "NotFound"
	TypeInvalidReading      = "InvalidReading"
	TypeInvalidInput        = "InvalidInput"
	TypeStoreUnavailable    = "StoreUnavailable"
	TypeConcurrencyConflict = "ConcurrencyConflict"
	TypeDuplicate           = "Duplicate"
	TypeForbidden           = "Forbidden"
	TypeInternal            = "Internal"
)

// RetryAfterSeconds is sent with replies a client should retry.
const RetryAfterSeconds = 1

// errorMapping is the HTTP rendition of one error kind.
type errorMapping struct {
	code    int
	typ     string
	message string
	retry   bool
}

// classify maps a domain error to its HTTP rendition.
func classify(err error) errorMapping {
	switch {
	case errors.Is(err, repository.ErrDeviceNotFound):
		return errorMapping{http.StatusNotFound, TypeUnknownDevice, "Device not found", false}
	case errors.Is(err, repository.ErrAlertNotFound):
		return errorMapping{http.StatusNotFound, TypeUnknownAlert, "Alert not found", false}
	case errors.Is(err, repository.ErrSpeciesNotFound):
		return errorMapping{http.StatusNotFound, TypeNotFound, "Species not found", false}
	case errors.Is(err, repository.ErrObservationNotFound):
		return errorMapping{http.StatusNotFound, TypeNotFound, "Observation not found", false}
	case errors.Is(err, repository.ErrReadingNotFound):
		return errorMapping{http.StatusNotFound, TypeNotFound, "Reading not found", false}
	case errors.Is(err, readings.ErrInvalidReading):
		return errorMapping{http.StatusBadRequest, TypeInvalidReading, "Invalid reading", false}
	case errors.Is(err, repository.ErrDuplicateKey):
		return errorMapping{http.StatusConflict, TypeDuplicate, "Record already exists", false}
	case errors.Is(err, repository.ErrInvalidInput), errors.IsCategory(err, errors.CategoryValidation):
		return errorMapping{http.StatusBadRequest, TypeInvalidInput, "Invalid input", false}
	case repository.IsConcurrencyConflict(err):
		return errorMapping{http.StatusConflict, TypeConcurrencyConflict, "Concurrent update, retry the request", true}
	case repository.IsStoreUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return errorMapping{http.StatusServiceUnavailable, TypeStoreUnavailable, "Store temporarily unavailable", true}
	default:
		return errorMapping{http.StatusInternalServerError, TypeInternal, "Internal server error", false}
	}
}

// HandleDomainError writes the reply for an error returned by a domain
// operation.
func (c *Controller) HandleDomainError(ctx echo.Context, err error) error {
	m := classify(err)
	if m.retry {
		ctx.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds))
	}
	resp := NewErrorResponse(err, m.message, m.code)
	resp.Type = m.typ
	return c.writeError(ctx, resp, err)
}

// badRequest writes a 400 reply for malformed input.
func (c *Controller) badRequest(ctx echo.Context, err error, message string) error {
	resp := NewErrorResponse(err, message, http.StatusBadRequest)
	resp.Type = TypeInvalidInput
	return c.writeError(ctx, resp, err)
}
