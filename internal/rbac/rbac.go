// Package rbac maps user roles to the capabilities and dashboard views they
// unlock. Every decision is pure and fails closed: a role outside the known
// set has no privilege level and an empty capability set.
package rbac

// Role represents an authorisation tier assigned by the remote service.
type Role string

const (
	// RoleViewer can read public alerts and its own tickets.
	RoleViewer Role = "viewer"

	// RolePolice handles alerts and tickets in the field.
	RolePolice Role = "police"

	// RoleAdmin manages alerts, tickets and users.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin has everything admin can do plus creating admin and
	// police accounts.
	RoleSuperAdmin Role = "super_admin"
)

// roleLevels orders the roles from least to most privileged.
var roleLevels = map[Role]int{
	RoleViewer:     0,
	RolePolice:     1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Level returns the privilege level of role and whether the role is known.
func Level(role Role) (int, bool) {
	level, ok := roleLevels[role]
	return level, ok
}

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(min Role) bool {
	return IsPermitted(r, AtLeast(min))
}

// ParseRole converts a wire value into a Role. Unknown values are kept
// verbatim so they can be logged, and reported as invalid.
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}

// AllRoles returns every known role from least to most privileged.
func AllRoles() []Role {
	return []Role{RoleViewer, RolePolice, RoleAdmin, RoleSuperAdmin}
}

// Requirement is what a control or dataset demands of the viewing role:
// either a minimum tier or an explicit set of permitted roles.
type Requirement struct {
	min   Role
	exact []Role
}

// AtLeast requires role to be min or anything above it.
func AtLeast(min Role) Requirement {
	return Requirement{min: min}
}

// AnyOf requires role to be one of roles exactly.
func AnyOf(roles ...Role) Requirement {
	exact := make([]Role, len(roles))
	copy(exact, roles)
	return Requirement{exact: exact}
}

// IsPermitted reports whether role satisfies req. It has no side effects and
// does not look at session state; callers must resolve the user first.
func IsPermitted(role Role, req Requirement) bool {
	level, ok := roleLevels[role]
	if !ok {
		return false
	}

	if req.exact != nil {
		for _, r := range req.exact {
			if r == role {
				return true
			}
		}
		return false
	}

	required, ok := roleLevels[req.min]
	if !ok {
		return false
	}
	return level >= required
}

// HomeView returns the dashboard a role lands on after login. Unknown roles
// are sent back to the login view.
func HomeView(role Role) string {
	switch role {
	case RoleSuperAdmin:
		return "/super-admin/dashboard"
	case RoleAdmin:
		return "/admin/dashboard"
	case RolePolice:
		return "/police/dashboard"
	case RoleViewer:
		return "/user/dashboard"
	default:
		return "/login"
	}
}
