package repository

import (
	"context"
	"errors"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrProviderProfileNotFound is returned when a provider profile is not found.
	ErrProviderProfileNotFound = errors.New("provider profile not found")
	// ErrProviderProfileExists is returned when a second profile is created for the same user.
	ErrProviderProfileExists = errors.New("provider profile already exists")
)

// ProviderProfileRepository defines the interface for provider profile operations.
type ProviderProfileRepository interface {
	// CreateProviderProfile persists a new profile. Returns ErrProviderProfileExists on a duplicate user.
	CreateProviderProfile(ctx context.Context, profile *entity.ProviderProfile) error

	// FindProviderProfileByID retrieves a profile by its ID.
	FindProviderProfileByID(ctx context.Context, id uuid.UUID) (*entity.ProviderProfile, error)

	// FindProviderProfileByUserID retrieves the profile owned by a user, reading from the primary.
	FindProviderProfileByUserID(ctx context.Context, userID uuid.UUID) (*entity.ProviderProfile, error)

	// UpdateProviderApprovalStatus sets approval_status on the profile owned by a user.
	UpdateProviderApprovalStatus(ctx context.Context, userID uuid.UUID, status entity.ApprovalStatus) error
}
