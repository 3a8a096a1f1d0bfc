package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// deviceRepository implements DeviceRepository.
type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) GetDevice(ctx context.Context, deviceID string) (*entities.Device, error) {
	var device entities.Device
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&device).Error
	if err != nil {
		return nil, storeError(err, "get_device", ErrDeviceNotFound)
	}
	return &device, nil
}

func (r *deviceRepository) ListDevices(ctx context.Context, activeOnly bool) ([]entities.Device, error) {
	var devices []entities.Device
	q := r.db.WithContext(ctx).Order("name ASC").Order("device_id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&devices).Error; err != nil {
		return nil, storeError(err, "list_devices", nil)
	}
	return devices, nil
}

func (r *deviceRepository) CreateDevice(ctx context.Context, device *entities.Device) error {
	if device.DeviceID == "" || device.Name == "" {
		return ErrInvalidInput
	}
	return referenceError(r.db.WithContext(ctx).Create(device).Error, "create_device", ErrSpeciesNotFound)
}

func (r *deviceRepository) UpdateDevice(ctx context.Context, device *entities.Device) error {
	if device.DeviceID == "" {
		return ErrInvalidInput
	}
	if _, err := r.GetDevice(ctx, device.DeviceID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Model(&entities.Device{}).
		Where("device_id = ?", device.DeviceID).
		Select("*").Omit("device_id", "created_at", clause.Associations).
		Updates(device).Error
	return referenceError(err, "update_device", ErrSpeciesNotFound)
}

func (r *deviceRepository) SetActive(ctx context.Context, deviceID string, active bool) (*entities.Device, error) {
	if _, err := r.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Model(&entities.Device{}).
		Where("device_id = ?", deviceID).
		Update("is_active", active).Error
	if err != nil {
		return nil, storeError(err, "set_device_active", nil)
	}
	return r.GetDevice(ctx, deviceID)
}

func (r *deviceRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Device{}).Where("is_active = ?", true).Count(&count).Error
	return count, storeError(err, "count_active_devices", nil)
}
