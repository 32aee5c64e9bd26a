package usecase

import (
	"context"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

// ViewUsecase serves the cached read models. Reads may lag the latest write;
// the Refresh methods reload a view from storage into the cache.
type ViewUsecase interface {
	Booking(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)
	RequesterBookings(ctx context.Context, requesterID uuid.UUID) ([]*entity.Booking, error)
	ProviderBookings(ctx context.Context, providerID uuid.UUID) ([]*entity.Booking, error)
	Account(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
	Applications(ctx context.Context, status entity.ApprovalStatus) ([]*entity.Account, error)

	RefreshBooking(ctx context.Context, bookingID uuid.UUID) error
	RefreshRequesterBookings(ctx context.Context, requesterID uuid.UUID) error
	RefreshProviderBookings(ctx context.Context, providerID uuid.UUID) error
	RefreshAccount(ctx context.Context, userID uuid.UUID) error
	RefreshApplications(ctx context.Context, status entity.ApprovalStatus) error
}
