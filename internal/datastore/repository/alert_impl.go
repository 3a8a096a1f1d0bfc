package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/errors"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) GetAlert(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, storeError(err, "get_alert", ErrAlertNotFound)
	}
	return &alert, nil
}

func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	q := r.db.WithContext(ctx)
	if filter.DeviceID != "" {
		q = q.Where("device_id = ?", filter.DeviceID)
	}
	switch filter.Status {
	case AlertStatusOpen:
		q = q.Where("is_resolved = ?", false)
	case AlertStatusResolved:
		q = q.Where("is_resolved = ?", true)
	case "":
	default:
		return nil, ErrInvalidInput
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var alerts []entities.Alert
	if err := q.Order("created_at DESC").Order("alert_id DESC").Find(&alerts).Error; err != nil {
		return nil, storeError(err, "list_alerts", nil)
	}
	return alerts, nil
}

func (r *alertRepository) OpenAlerts(ctx context.Context, deviceID string) ([]entities.Alert, error) {
	var alerts []entities.Alert
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND is_resolved = ?", deviceID, false).
		Order("created_at ASC").Order("alert_id ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, storeError(err, "open_alerts", nil)
	}
	return alerts, nil
}

func (r *alertRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).Where("is_resolved = ?", false).Count(&count).Error
	return count, storeError(err, "count_unresolved_alerts", nil)
}

func (r *alertRepository) ApplyTransition(ctx context.Context, t *Transition) (*TransitionResult, error) {
	if t == nil || t.DeviceID == "" {
		return nil, ErrInvalidInput
	}

	result := &TransitionResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := r.resolveInTx(tx, t)
		if err != nil {
			return err
		}
		if err := r.openInTx(tx, t); err != nil {
			return err
		}
		if err := r.markReadingInTx(tx, t); err != nil {
			return err
		}
		result.Opened = t.Open
		result.Resolved = resolved
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrReadingNotFound) {
			return nil, err
		}
		return nil, storeError(err, "apply_transition", nil)
	}
	return result, nil
}

func (r *alertRepository) resolveInTx(tx *gorm.DB, t *Transition) ([]*entities.Alert, error) {
	if len(t.Resolve) == 0 {
		return nil, nil
	}

	resolvedAt := normalizeTime(t.ResolvedAt)
	updates := map[string]any{
		"is_resolved": true,
		"resolved_at": resolvedAt,
		"resolution":  t.Resolution,
	}
	if t.ResolvedBy != "" {
		updates["resolved_by"] = t.ResolvedBy
	}

	resolved := make([]*entities.Alert, 0, len(t.Resolve))
	for _, id := range t.Resolve {
		res := tx.Model(&entities.Alert{}).
			Where("alert_id = ? AND device_id = ? AND is_resolved = ?", id, t.DeviceID, false).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			return nil, conflictError("resolve_alert", t.DeviceID, fmt.Sprintf("alert %d is no longer open", id))
		}

		var alert entities.Alert
		if err := tx.First(&alert, id).Error; err != nil {
			return nil, err
		}
		resolved = append(resolved, &alert)
	}
	return resolved, nil
}

func (r *alertRepository) openInTx(tx *gorm.DB, t *Transition) error {
	for _, alert := range t.Open {
		if alert.DeviceID != t.DeviceID {
			return ErrInvalidInput
		}

		var open int64
		err := tx.Model(&entities.Alert{}).
			Where("device_id = ? AND alert_type = ? AND is_resolved = ?", t.DeviceID, alert.AlertType, false).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return conflictError("open_alert", t.DeviceID, fmt.Sprintf("%s alert already open", alert.AlertType))
		}

		if alert.CreatedAt.IsZero() {
			alert.CreatedAt = time.Now()
		}
		alert.CreatedAt = normalizeTime(alert.CreatedAt)
		if alert.Severity == "" {
			alert.Severity = entities.SeverityMedium
		}
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *alertRepository) markReadingInTx(tx *gorm.DB, t *Transition) error {
	if t.ReadingID == 0 {
		return nil
	}

	updates := map[string]any{"evaluated": true}
	if len(t.Open) > 0 {
		updates["alert_generated"] = true
	}

	res := tx.Model(&entities.Reading{}).
		Where("reading_id = ? AND device_id = ?", t.ReadingID, t.DeviceID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := tx.Model(&entities.Reading{}).Where("reading_id = ?", t.ReadingID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrReadingNotFound
		}
	}
	return nil
}
