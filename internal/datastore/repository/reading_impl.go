package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/errors"
)

// readingRepository implements ReadingRepository.
type readingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) CreateReading(ctx context.Context, reading *entities.Reading) error {
	if reading.DeviceID == "" || reading.ReadingTimestamp.IsZero() {
		return ErrInvalidInput
	}
	reading.ReadingTimestamp = normalizeTime(reading.ReadingTimestamp)
	if reading.ReadingStatus == "" {
		reading.ReadingStatus = entities.ReadingStatusOK
	}
	return storeError(r.db.WithContext(ctx).Create(reading).Error, "create_reading", nil)
}

func (r *readingRepository) GetReading(ctx context.Context, id uint) (*entities.Reading, error) {
	var reading entities.Reading
	if err := r.db.WithContext(ctx).First(&reading, id).Error; err != nil {
		return nil, storeError(err, "get_reading", ErrReadingNotFound)
	}
	return &reading, nil
}

func (r *readingRepository) Latest(ctx context.Context, deviceID string) (*entities.Reading, error) {
	var reading entities.Reading
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("reading_timestamp DESC").Order("reading_id DESC").
		Take(&reading).Error
	if err != nil {
		return nil, storeError(err, "latest_reading", ErrReadingNotFound)
	}
	return &reading, nil
}

func (r *readingRepository) Page(ctx context.Context, deviceID string, page ReadingPage) ([]entities.Reading, error) {
	q := r.db.WithContext(ctx).Where("device_id = ?", deviceID)

	if !page.From.IsZero() {
		q = q.Where("reading_timestamp >= ?", normalizeTime(page.From))
	}
	if !page.To.IsZero() {
		q = q.Where("reading_timestamp < ?", normalizeTime(page.To))
	}
	if page.AfterID != 0 {
		ts := normalizeTime(page.AfterTimestamp)
		idOp := "reading_id > ?"
		if page.Inclusive {
			idOp = "reading_id >= ?"
		}
		q = q.Where("(reading_timestamp > ? OR (reading_timestamp = ? AND "+idOp+"))", ts, ts, page.AfterID)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}

	var readings []entities.Reading
	if err := q.Order("reading_timestamp ASC").Order("reading_id ASC").Find(&readings).Error; err != nil {
		return nil, storeError(err, "page_readings", nil)
	}
	return readings, nil
}

func (r *readingRepository) NthNewest(ctx context.Context, deviceID string, n int, before time.Time) (*entities.Reading, error) {
	if n < 1 {
		return nil, ErrInvalidInput
	}
	q := r.db.WithContext(ctx).Where("device_id = ?", deviceID)
	if !before.IsZero() {
		q = q.Where("reading_timestamp < ?", normalizeTime(before))
	}

	var reading entities.Reading
	err := q.Order("reading_timestamp DESC").Order("reading_id DESC").
		Offset(n - 1).Take(&reading).Error
	if err != nil {
		return nil, storeError(err, "nth_newest_reading", ErrReadingNotFound)
	}
	return &reading, nil
}

func (r *readingRepository) ListNewest(ctx context.Context, deviceID string, limit int) ([]entities.Reading, error) {
	q := r.db.WithContext(ctx)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var readings []entities.Reading
	if err := q.Order("reading_timestamp DESC").Order("reading_id DESC").Find(&readings).Error; err != nil {
		return nil, storeError(err, "list_newest_readings", nil)
	}
	return readings, nil
}

func (r *readingRepository) NewestEvaluatedAt(ctx context.Context, deviceID string) (time.Time, bool, error) {
	var reading entities.Reading
	err := r.db.WithContext(ctx).
		Select("reading_id", "reading_timestamp").
		Where("device_id = ? AND evaluated = ?", deviceID, true).
		Order("reading_timestamp DESC").
		Take(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storeError(err, "newest_evaluated_reading", nil)
	}
	return reading.ReadingTimestamp, true, nil
}

func (r *readingRepository) ListUnevaluated(ctx context.Context, limit int) ([]entities.Reading, error) {
	q := r.db.WithContext(ctx).Where("evaluated = ?", false)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var readings []entities.Reading
	if err := q.Order("reading_timestamp ASC").Order("reading_id ASC").Find(&readings).Error; err != nil {
		return nil, storeError(err, "list_unevaluated_readings", nil)
	}
	return readings, nil
}

func (r *readingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Reading{}).Count(&count).Error
	return count, storeError(err, "count_readings", nil)
}
