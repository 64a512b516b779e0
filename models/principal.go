package models

// Role is the closed set of actor kinds resolved at authentication time.
type Role string

const (
	RoleUser       Role = "user"
	RoleProvider   Role = "provider"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleUser, RoleProvider, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller, resolved once from the JWT into a
// typed role/id pair rather than per-call model selection.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal carries admin privileges.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}
