package entities

import "time"

// Observation defaults.
const (
	ObservationSourceCamera  = "camera"
	ObservationStatusPending = "pending"
)

// Observation is a user sighting of a species. IsMasked is operator
// controlled and hides the location of endangered species from the public.
type Observation struct {
	ID        uint `gorm:"primaryKey;column:observation_id" json:"observation_id"`
	UserID    uint `gorm:"not null;index" json:"user_id"`
	SpeciesID uint `gorm:"not null;index" json:"species_id"`

	PhotoURL     string  `gorm:"size:500" json:"photo_url,omitempty"`
	Latitude     float64 `gorm:"not null" json:"latitude"`
	Longitude    float64 `gorm:"not null" json:"longitude"`
	LocationName string  `gorm:"size:200" json:"location_name,omitempty"`
	Notes        string  `gorm:"type:text" json:"notes,omitempty"`

	Source   string `gorm:"size:20;not null;default:camera" json:"source"`
	Status   string `gorm:"size:20;not null;default:pending" json:"status"`
	IsMasked bool   `gorm:"not null;default:false" json:"is_masked"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Observation) TableName() string {
	return "plant_observations"
}
