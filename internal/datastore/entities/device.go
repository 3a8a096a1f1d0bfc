package entities

import "time"

// Device is a registered field sensor unit. Devices are never deleted;
// deactivation keeps historical readings and alerts joinable.
type Device struct {
	DeviceID string `gorm:"primaryKey;size:64" json:"device_id"`
	NodeID   string `gorm:"size:64" json:"node_id,omitempty"`
	Name     string `gorm:"size:200;not null" json:"device_name"`

	// Registered location
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `gorm:"size:200" json:"location_name,omitempty"`

	SpeciesID *uint `gorm:"index" json:"species_id,omitempty"`

	IsActive        bool `gorm:"not null;index" json:"is_active"`
	LocationMasked  bool `gorm:"not null;default:false" json:"location_masked"`
	MotionSensitive bool `gorm:"not null;default:false" json:"motion_sensitive"`

	// Per-device safe bands; nil falls back to the default policy.
	TemperatureMin  *float64 `json:"temperature_min,omitempty"`
	TemperatureMax  *float64 `json:"temperature_max,omitempty"`
	HumidityMin     *float64 `json:"humidity_min,omitempty"`
	HumidityMax     *float64 `json:"humidity_max,omitempty"`
	SoilMoistureMin *float64 `json:"soil_moisture_min,omitempty"`
	SoilMoistureMax *float64 `json:"soil_moisture_max,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Readings []Reading `gorm:"foreignKey:DeviceID;references:DeviceID;constraint:OnDelete:RESTRICT" json:"-"`
	Alerts   []Alert   `gorm:"foreignKey:DeviceID;references:DeviceID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName returns the table name for GORM.
func (Device) TableName() string {
	return "sensor_devices"
}
