package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/readings"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	enhanced := func(err error, c errors.ErrorCategory) error {
		return errors.New(err).Component("test").Category(c).Build()
	}

	tests := []struct {
		name  string
		err   error
		code  int
		typ   string
		retry bool
	}{
		{"unknown device", fmt.Errorf("%w: DEV-9", repository.ErrDeviceNotFound), http.StatusNotFound, TypeUnknownDevice, false},
		{"unknown alert", enhanced(repository.ErrAlertNotFound, errors.CategoryNotFound), http.StatusNotFound, TypeUnknownAlert, false},
		{"missing species", repository.ErrSpeciesNotFound, http.StatusNotFound, TypeNotFound, false},
		{"invalid reading", enhanced(fmt.Errorf("%w: humidity", readings.ErrInvalidReading), errors.CategoryValidation), http.StatusBadRequest, TypeInvalidReading, false},
		{"invalid input", repository.ErrInvalidInput, http.StatusBadRequest, TypeInvalidInput, false},
		{"duplicate", enhanced(fmt.Errorf("%w: x", repository.ErrDuplicateKey), errors.CategoryValidation), http.StatusConflict, TypeDuplicate, false},
		{"conflict", enhanced(fmt.Errorf("%w: stale", repository.ErrConcurrencyConflict), errors.CategoryConflict), http.StatusConflict, TypeConcurrencyConflict, true},
		{"store down", enhanced(fmt.Errorf("%w: locked", repository.ErrStoreUnavailable), errors.CategoryDatabase), http.StatusServiceUnavailable, TypeStoreUnavailable, true},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, TypeStoreUnavailable, true},
		{"other", errors.NewStd("boom"), http.StatusInternalServerError, TypeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := classify(tt.err)
			assert.Equal(t, tt.code, m.code)
			assert.Equal(t, tt.typ, m.typ)
			assert.Equal(t, tt.retry, m.retry)
		})
	}
}

func TestNewErrorResponseScrubsCoordinates(t *testing.T) {
	t.Parallel()

	resp := NewErrorResponse(errors.NewStd("reading at 1.4667,110.3333 rejected"), "Invalid reading", http.StatusBadRequest)
	assert.NotContains(t, resp.Error, "110.3333")
	assert.Equal(t, "Invalid reading", resp.Message)
	assert.Len(t, resp.CorrelationID, 8)

	resp = NewErrorResponse(nil, "Forbidden", http.StatusForbidden)
	assert.Equal(t, "Forbidden", resp.Error)
}
