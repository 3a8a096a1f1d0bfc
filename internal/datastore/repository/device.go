package repository

import (
	"context"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// DeviceRepository handles sensor device registration and lookups.
type DeviceRepository interface {
	GetDevice(ctx context.Context, deviceID string) (*entities.Device, error)
	// ListDevices returns devices ordered by name then id.
	ListDevices(ctx context.Context, activeOnly bool) ([]entities.Device, error)
	CreateDevice(ctx context.Context, device *entities.Device) error
	// UpdateDevice writes every column of device; the device must exist.
	UpdateDevice(ctx context.Context, device *entities.Device) error
	SetActive(ctx context.Context, deviceID string, active bool) (*entities.Device, error)
	CountActive(ctx context.Context) (int64, error)
}
