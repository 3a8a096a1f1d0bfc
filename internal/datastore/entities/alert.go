package entities

import "time"

// Alert severities in ascending order.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Resolution kinds.
const (
	ResolutionOperator  = "operator"
	ResolutionRecovered = "recovered"
)

// Alert records that a device breached one condition. Alerts are only
// mutated by resolution and never deleted.
type Alert struct {
	ID        uint   `gorm:"primaryKey;column:alert_id" json:"alert_id"`
	DeviceID  string `gorm:"size:64;not null;index:idx_alert_device_open,priority:1" json:"device_id"`
	ReadingID uint   `gorm:"not null;index" json:"reading_id"`

	AlertType     string   `gorm:"size:50;not null;index:idx_alert_device_open,priority:2" json:"alert_type"`
	Message       string   `gorm:"size:500;not null" json:"message"`
	Severity      string   `gorm:"size:20;not null;default:medium" json:"severity"`
	MeasuredValue *float64 `json:"measured_value,omitempty"`

	IsResolved bool       `gorm:"not null;default:false;index:idx_alert_device_open,priority:3" json:"is_resolved"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *string    `gorm:"size:100" json:"resolved_by,omitempty"`
	Resolution *string    `gorm:"size:20" json:"resolution,omitempty"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}
