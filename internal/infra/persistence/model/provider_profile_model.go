package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProviderProfileModel is the GORM-specific struct for the 'provider_profiles' table.
type ProviderProfileModel struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID          uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex"`
	Name            string                      `gorm:"type:varchar(255);not null"`
	Bio             string                      `gorm:"type:text;not null;default:''"`
	Specialties     datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	ExperienceYears int                         `gorm:"not null;default:0"`
	Price           float64                     `gorm:"type:numeric(12,2);not null;default:0"`
	Availability    string                      `gorm:"type:text;not null;default:''"`
	Location        string                      `gorm:"type:text;not null;default:''"`
	ApprovalStatus  string                      `gorm:"type:varchar(20);not null"`
	Rating          float64                     `gorm:"type:numeric(3,2);not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName explicitly sets the table name for GORM.
func (ProviderProfileModel) TableName() string {
	return "provider_profiles"
}
