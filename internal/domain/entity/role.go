package entity

import "slices"

// Role is an authorization role carried in access tokens.
type Role string

const (
	RoleUser     Role = "user"     // every authenticated account
	RoleProvider Role = "provider" // while the account's provider access flag is set
	RoleAdmin    Role = "admin"
)

var knownRoles = []Role{RoleUser, RoleProvider, RoleAdmin}

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the roles the API grants.
func (r Role) IsValid() bool {
	return slices.Contains(knownRoles, r)
}

// Roles is the role set of one principal.
type Roles []Role

func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings is the token claim form of rs.
func (rs Roles) ToStrings() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}

	return out
}

// RolesFromStrings parses token claims. Unknown and repeated roles are dropped, so a
// token minted before a role was retired still parses.
func RolesFromStrings(ss []string) Roles {
	out := make(Roles, 0, len(ss))
	for _, s := range ss {
		if r := Role(s); r.IsValid() && !out.Contains(r) {
			out = append(out, r)
		}
	}

	return out
}
