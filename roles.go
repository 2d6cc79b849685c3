package auth

import "strings"

// Role is the account role. The set is closed: every switch over Role
// must handle RoleAdmin and RoleUser and deny anything else.
type Role string

const (
	// RoleAdmin can read and mutate any account and manage the catalog
	RoleAdmin Role = "admin"
	// RoleUser is a storefront customer, it can only access its own account
	RoleUser Role = "user"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdmin reports if the role grants unrestricted access
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleUser,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
