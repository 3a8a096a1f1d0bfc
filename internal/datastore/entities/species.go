package entities

import "time"

// Species is a catalog entry for a plant species.
type Species struct {
	ID             uint      `gorm:"primaryKey;column:species_id" json:"species_id"`
	ScientificName string    `gorm:"size:200;not null;uniqueIndex" json:"scientific_name"`
	CommonName     string    `gorm:"size:200" json:"common_name"`
	IsEndangered   bool      `gorm:"not null;default:false" json:"is_endangered"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	ImageURL       string    `gorm:"size:500" json:"image_url,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Devices      []Device      `gorm:"foreignKey:SpeciesID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	Observations []Observation `gorm:"foreignKey:SpeciesID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName returns the table name for GORM.
func (Species) TableName() string {
	return "species"
}
