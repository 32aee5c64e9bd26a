package usecase

import (
	"context"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

// ApplicationInput represents a provider application submitted by a user
type ApplicationInput struct {
	Name            string   `json:"name" validate:"required,max=255"`
	Bio             string   `json:"bio" validate:"max=4000"`
	Specialties     []string `json:"specialties" validate:"max=20,dive,max=100"`
	ExperienceYears int      `json:"experience_years" validate:"gte=0,lte=100"`
	Price           float64  `json:"price" validate:"gte=0"`
	Availability    string   `json:"availability" validate:"max=1000"`
	Location        string   `json:"location" validate:"max=255"`
}

// DecisionResult is the outcome of an approval decision. Warning is set when the
// decision was committed but a dependent profile write failed.
type DecisionResult struct {
	Account *entity.Account         `json:"account"`
	Profile *entity.ProviderProfile `json:"profile,omitempty"`
	Warning error                   `json:"-"`
}

// ApprovalUsecase defines the provider approval workflow.
type ApprovalUsecase interface {
	Apply(ctx context.Context, userID uuid.UUID, input *ApplicationInput) (*entity.Account, error)
	Decide(ctx context.Context, userID uuid.UUID, decision entity.ApprovalStatus) (*DecisionResult, error)
	// Revoke removes provider access and clears the application; the profile is kept.
	Revoke(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
	// Reconcile re-mirrors the account's application status into the provider profile.
	Reconcile(ctx context.Context, userID uuid.UUID) (*entity.ProviderProfile, error)

	ListApplications(ctx context.Context, status entity.ApprovalStatus) ([]*entity.Account, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
}
