// Package usecase defines the application operations exposed to the delivery layer.
package usecase

import (
	"context"
	"time"

	"darshan/internal/domain/entity"
	"darshan/internal/domain/service"

	"github.com/google/uuid"
)

// CreateBookingInput represents the input for creating a booking
type CreateBookingInput struct {
	RequesterID uuid.UUID
	ProviderID  uuid.UUID // Provider profile ID.
	ScheduledAt time.Time
	Purpose     string
	Address     string
	Notes       string
	Price       *float64 // Defaults to the provider's listed price.
	// Payment is an outcome already verified with the payment processor; the booking is created confirmed.
	Payment *service.PaymentOutcome
}

// BookingParty describes how a user relates to a booking.
type BookingParty int

const (
	PartyNone BookingParty = iota
	PartyRequester
	PartyProvider
	PartyAdmin
)

// BookingUsecase defines the booking lifecycle operations.
type BookingUsecase interface {
	Create(ctx context.Context, input *CreateBookingInput) (*entity.Booking, error)

	// Transition moves a booking along the lifecycle graph. When expectedVersion is set and
	// differs from the stored version the call fails with a conflict and writes nothing.
	Transition(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus, expectedVersion *int64) (*entity.Booking, error)

	Confirm(ctx context.Context, bookingID uuid.UUID, payment *service.PaymentOutcome, expectedVersion *int64) (*entity.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, expectedVersion *int64) (*entity.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID, expectedVersion *int64) (*entity.Booking, error)

	// StartJourney marks a confirmed booking as en route. Only the booked provider may call it.
	StartJourney(ctx context.Context, bookingID, actorUserID uuid.UUID) (*entity.Booking, error)

	Get(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)
	ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*entity.Booking, error)
	// ListForProvider returns the dashboard of the provider profile owned by providerUserID.
	ListForProvider(ctx context.Context, providerUserID uuid.UUID) ([]*entity.Booking, error)

	// Party reports the relation of userID to the booking; admins are reported as PartyAdmin.
	Party(ctx context.Context, booking *entity.Booking, userID uuid.UUID, isAdmin bool) (BookingParty, error)
}
