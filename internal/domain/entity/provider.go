package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the state of a provider application.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// String returns the string representation of the approval status.
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is one of the defined values.
func (s ApprovalStatus) IsValid() bool {
	return s == ApprovalStatusPending || s.IsDecision()
}

// IsDecision reports whether the status is a final admin decision.
func (s ApprovalStatus) IsDecision() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// ProviderProfile is the public-facing record of a provider ("priest").
// At most one exists per user and it is never deleted, only updated.
type ProviderProfile struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"` // Owning account, unique.
	Name            string         `json:"name"`
	Bio             string         `json:"bio"`
	Specialties     []string       `json:"specialties"` // Ordered, without duplicates.
	ExperienceYears int            `json:"experience_years"`
	Price           float64        `json:"price"`
	Availability    string         `json:"availability"`
	Location        string         `json:"location"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	Rating          float64        `json:"rating"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NormalizeSpecialties trims, drops empties and removes duplicates while keeping order.
func NormalizeSpecialties(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
