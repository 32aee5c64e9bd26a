// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	// BookingStatusPending is the initial state of every booking.
	BookingStatusPending BookingStatus = "pending"
	// BookingStatusConfirmed marks a booking the provider will attend.
	BookingStatusConfirmed BookingStatus = "confirmed"
	// BookingStatusCompleted is terminal.
	BookingStatusCompleted BookingStatus = "completed"
	// BookingStatusCancelled is terminal.
	BookingStatusCancelled BookingStatus = "cancelled"
)

// bookingTransitions lists every legal edge of the booking state machine.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves this status.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransitionTo reports whether from -> to is an edge of the booking state machine.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}

	return false
}

// Booking is a scheduled engagement between a requester and a provider.
type Booking struct {
	ID             uuid.UUID     `json:"id"`              // The Global Unique Identifier (GUID) for the booking.
	RequesterID    uuid.UUID     `json:"requester_id"`    // The user who created the booking.
	ProviderID     uuid.UUID     `json:"provider_id"`     // The provider profile the booking is made with.
	ScheduledAt    time.Time     `json:"scheduled_at"`    // When the engagement takes place.
	Purpose        string        `json:"purpose"`         // Free text, e.g. the ceremony requested.
	Address        string        `json:"address"`         // Where the provider should travel to.
	Notes          string        `json:"notes,omitempty"` // Optional requester notes.
	Price          float64       `json:"price"`           // Non-negative amount agreed at booking time.
	PaymentRef     *string       `json:"payment_ref,omitempty"`
	Status         BookingStatus `json:"status"`
	JourneyStarted bool          `json:"journey_started"` // Only meaningful while Status is confirmed.
	Version        int64         `json:"version"`         // Incremented on every write; used for optimistic concurrency.
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsJourneyActive reports whether live location samples are accepted for the booking.
func (b *Booking) IsJourneyActive() bool {
	return b.Status == BookingStatusConfirmed && b.JourneyStarted
}

// RequiresPayment reports whether confirmation needs a payment reference.
func (b *Booking) RequiresPayment() bool {
	return b.Price > 0
}
