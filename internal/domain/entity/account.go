package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProviderApplication is the snapshot of details a user submitted when applying to become a provider.
// It seeds the Provider Profile on first approval.
type ProviderApplication struct {
	Name            string   `json:"name"`
	Bio             string   `json:"bio"`
	Specialties     []string `json:"specialties"`
	ExperienceYears int      `json:"experience_years"`
	Price           float64  `json:"price"`
	Availability    string   `json:"availability"`
	Location        string   `json:"location"`
}

// Account is the user/account profile. IsProvider is the authoritative access gate;
// ApplicationStatus mirrors ProviderProfile.ApprovalStatus but is written independently.
type Account struct {
	ID                uuid.UUID            `json:"id"`
	Email             string               `json:"email"`
	Name              string               `json:"name"`
	IsAdmin           bool                 `json:"is_admin"`
	IsProvider        bool                 `json:"is_provider"`
	ApplicationStatus *ApprovalStatus      `json:"application_status"` // nil means no application.
	Application       *ProviderApplication `json:"application,omitempty"`
	AppliedAt         *time.Time           `json:"applied_at,omitempty"`
	DecidedAt         *time.Time           `json:"decided_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// ApplicationState returns the application status, or the empty string when there is none.
func (a *Account) ApplicationState() ApprovalStatus {
	if a.ApplicationStatus == nil {
		return ""
	}

	return *a.ApplicationStatus
}

// Roles derives the authorization roles granted by the account flags.
func (a *Account) Roles() Roles {
	roles := Roles{RoleUser}
	if a.IsProvider {
		roles = append(roles, RoleProvider)
	}
	if a.IsAdmin {
		roles = append(roles, RoleAdmin)
	}

	return roles
}
