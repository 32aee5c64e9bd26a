package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// TrackingPhase is what the requester sees while waiting for the provider.
type TrackingPhase string

const (
	TrackingPhasePreparing TrackingPhase = "preparing"
	TrackingPhaseEnRoute   TrackingPhase = "en_route"
	TrackingPhaseArrived   TrackingPhase = "arrived"
)

// LocationSample is the latest known position of the provider travelling to a booking.
// Only one sample per booking is kept.
type LocationSample struct {
	BookingID        uuid.UUID  `json:"booking_id"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Speed            *float64   `json:"speed,omitempty"` // Metres per second.
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	CapturedAt       time.Time  `json:"captured_at"`
}

// Point returns the sample as an orb point (longitude first).
func (s *LocationSample) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

// TrackingStatus is the requester-facing view of a booking in progress.
type TrackingStatus struct {
	BookingID  uuid.UUID       `json:"booking_id"`
	Phase      TrackingPhase   `json:"phase"`
	LastSample *LocationSample `json:"last_sample,omitempty"`
	ETA        string          `json:"eta"`
}
