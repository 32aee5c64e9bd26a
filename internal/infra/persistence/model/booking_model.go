package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingModel is the GORM-specific struct for the 'bookings' table.
type BookingModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RequesterID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ProviderID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ScheduledAt    time.Time `gorm:"not null"`
	Purpose        string    `gorm:"type:varchar(255);not null"`
	Address        string    `gorm:"type:text;not null"`
	Notes          string    `gorm:"type:text;not null;default:''"`
	Price          float64   `gorm:"type:numeric(12,2);not null;default:0"`
	PaymentRef     *string   `gorm:"type:varchar(255)"`
	Status         string    `gorm:"type:varchar(20);not null;default:'pending'"`
	JourneyStarted bool      `gorm:"not null;default:false"`
	Version        int64     `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (BookingModel) TableName() string {
	return "bookings"
}
