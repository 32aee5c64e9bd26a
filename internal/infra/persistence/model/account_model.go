package model

import (
	"time"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AccountModel is the GORM-specific struct for the 'accounts' table.
// The application snapshot is stored as JSONB next to the access flags.
type AccountModel struct {
	ID                uuid.UUID                                       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email             string                                          `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name              string                                          `gorm:"type:varchar(255);not null"`
	IsAdmin           bool                                            `gorm:"not null;default:false"`
	IsProvider        bool                                            `gorm:"not null;default:false"`
	ApplicationStatus *string                                         `gorm:"type:varchar(20);index"`
	Application       *datatypes.JSONType[entity.ProviderApplication] `gorm:"type:jsonb"`
	AppliedAt         *time.Time
	DecidedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
