package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(logger.NewDiscardLogger(), 0),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestStoreFailureMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		queryErr  error
		category  errors.ErrorCategory
		retryable bool
	}{
		{"connection refused", errors.NewStd("dial tcp 10.0.0.5:3306: connect: connection refused"), errors.CategoryDatabase, true},
		{"deadline", context.DeadlineExceeded, errors.CategoryTimeout, true},
		{"canceled", context.Canceled, errors.CategoryCancellation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock := newMockDB(t)
			mock.ExpectQuery("SELECT (.+) FROM `sensor_devices`").WillReturnError(tt.queryErr)

			_, err := repository.NewDeviceRepository(db).GetDevice(context.Background(), "DEV-001")
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "category of %v", err)
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
			assert.Equal(t, tt.retryable, repository.IsStoreUnavailable(err))
			assert.NotErrorIs(t, err, repository.ErrDeviceNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStoreNoRowsIsNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `alerts`").
		WillReturnRows(sqlmock.NewRows([]string{"alert_id", "device_id"}))

	_, err := repository.NewAlertRepository(db).GetAlert(context.Background(), 42)
	require.ErrorIs(t, err, repository.ErrAlertNotFound)
	assert.False(t, errors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRollsBackOnStoreFailure(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `alerts`").WillReturnError(fmt.Errorf("write failed: %w", errors.NewStd("broken pipe")))
	mock.ExpectRollback()

	_, err := repository.NewAlertRepository(db).ApplyTransition(context.Background(), &repository.Transition{
		DeviceID:   "DEV-001",
		Resolve:    []uint{7},
		Resolution: "operator",
	})
	require.ErrorIs(t, err, repository.ErrStoreUnavailable)
	assert.True(t, errors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
