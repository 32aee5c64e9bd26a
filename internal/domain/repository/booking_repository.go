// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"errors"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for booking persistence.
var (
	// ErrBookingNotFound is returned when a booking is not found.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingVersionMismatch is returned when a conditional update matched no row
	// because the status or version changed since it was read.
	ErrBookingVersionMismatch = errors.New("booking was modified concurrently")
)

// BookingUpdate describes a conditional write: it only applies while the stored
// row still has ExpectedStatus and ExpectedVersion.
type BookingUpdate struct {
	ID              uuid.UUID
	ExpectedStatus  entity.BookingStatus
	ExpectedVersion int64
	Status          entity.BookingStatus
	JourneyStarted  bool
	PaymentRef      *string
}

// BookingRepository defines the interface for booking-related database operations.
type BookingRepository interface {
	// CreateBooking persists a new booking with version 1.
	CreateBooking(ctx context.Context, booking *entity.Booking) error

	// FindBookingByID reads a booking from a read replica; the result may lag recent writes.
	FindBookingByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)

	// FindBookingByIDForWrite reads a booking from the primary.
	FindBookingByIDForWrite(ctx context.Context, id uuid.UUID) (*entity.Booking, error)

	// UpdateBookingConditionally applies the update and returns the stored booking.
	// Returns ErrBookingVersionMismatch when the expectation no longer holds.
	UpdateBookingConditionally(ctx context.Context, update BookingUpdate) (*entity.Booking, error)

	// FindBookingsByRequester lists a requester's bookings, newest schedule first.
	FindBookingsByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*entity.Booking, error)

	// FindBookingsByProvider lists a provider's bookings, optionally filtered by status.
	FindBookingsByProvider(ctx context.Context, providerID uuid.UUID, statuses []entity.BookingStatus, limit, offset int) ([]*entity.Booking, error)
}
