package model

import (
	"time"

	"github.com/google/uuid"
)

// LocationSampleModel is the GORM-specific struct for the 'location_samples' table.
// It holds one row per booking, overwritten on every report.
type LocationSampleModel struct {
	BookingID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Latitude         float64   `gorm:"not null"`
	Longitude        float64   `gorm:"not null"`
	Speed            *float64
	EstimatedArrival *time.Time
	CapturedAt       time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (LocationSampleModel) TableName() string {
	return "location_samples"
}
