package entities

import "time"

// Default reading status when the device does not report one.
const ReadingStatusOK = "ok"

// Reading is one telemetry sample from a device. Apart from the evaluation
// bookkeeping flags a stored reading never changes.
type Reading struct {
	ID       uint   `gorm:"primaryKey;column:reading_id" json:"reading_id"`
	DeviceID string `gorm:"size:64;not null;index:idx_reading_device_time,priority:1" json:"device_id"`

	ReadingTimestamp time.Time `gorm:"not null;index:idx_reading_device_time,priority:2" json:"reading_timestamp"`

	// Metrics; nil means the device did not report the value.
	Temperature    *float64           `json:"temperature"`
	Humidity       *float64           `json:"humidity"`
	SoilMoisture   *float64           `json:"soil_moisture"`
	MotionDetected bool               `gorm:"not null;default:false" json:"motion_detected"`
	Metrics        map[string]float64 `gorm:"serializer:json" json:"metrics,omitempty"` // additional named metrics

	ReadingStatus string `gorm:"size:50;not null;default:ok" json:"reading_status"`

	Latitude  *float64 `gorm:"column:location_latitude" json:"location_latitude,omitempty"`
	Longitude *float64 `gorm:"column:location_longitude" json:"location_longitude,omitempty"`

	// Evaluation bookkeeping
	AlertGenerated bool `gorm:"not null;default:false" json:"alert_generated"`
	Evaluated      bool `gorm:"not null;default:false;index" json:"evaluated"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Alerts opened by this reading.
	Alerts []Alert `gorm:"foreignKey:ReadingID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName returns the table name for GORM.
func (Reading) TableName() string {
	return "sensor_readings"
}
