package repository

import (
	"context"
	"errors"
	"time"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned when an account is not found.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository defines the interface for account profile operations.
type AccountRepository interface {
	// FindAccountByID reads an account from a read replica.
	FindAccountByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindAccountByIDForWrite reads an account from the primary.
	FindAccountByIDForWrite(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// SubmitApplication stores the application snapshot and sets the status to pending.
	SubmitApplication(ctx context.Context, id uuid.UUID, application *entity.ProviderApplication, at time.Time) error

	// UpdateProviderAccess writes the access flag and application status together.
	// A nil status clears the application.
	UpdateProviderAccess(ctx context.Context, id uuid.UUID, isProvider bool, status *entity.ApprovalStatus, at time.Time) error

	// FindAccountsByApplicationStatus lists accounts with the given application status, oldest application first.
	FindAccountsByApplicationStatus(ctx context.Context, status entity.ApprovalStatus, limit, offset int) ([]*entity.Account, error)
}
