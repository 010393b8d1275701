package rbac

import "sort"

// Capability represents a named feature or dataset a view may expose.
type Capability string

// Capability constants.
const (
	CapAlertsRead          Capability = "alerts:read"
	CapAlertsCreate        Capability = "alerts:create"
	CapAlertsManage        Capability = "alerts:manage"
	CapTicketsRead         Capability = "tickets:read"
	CapTicketsCreate       Capability = "tickets:create"
	CapTicketsResolve      Capability = "tickets:resolve"
	CapMapView             Capability = "map:view"
	CapAnalyticsView       Capability = "analytics:view"
	CapUsersRead           Capability = "users:read"
	CapUsersManage         Capability = "users:manage"
	CapCreatePoliceAccount Capability = "accounts:create_police"
	CapCreateAdminAccount  Capability = "accounts:create_admin"
)

// roleCapabilities maps each role to its granted capabilities.
// This is the single source of truth for what a view may render.
var roleCapabilities = map[Role][]Capability{
	RoleViewer: {
		CapAlertsRead,
		CapTicketsRead,
		CapTicketsCreate,
	},
	RolePolice: {
		CapAlertsRead,
		CapAlertsCreate,
		CapTicketsRead,
		CapTicketsCreate,
		CapTicketsResolve,
		CapMapView,
	},
	RoleAdmin: {
		CapAlertsRead,
		CapAlertsCreate,
		CapAlertsManage,
		CapTicketsRead,
		CapTicketsCreate,
		CapTicketsResolve,
		CapMapView,
		CapAnalyticsView,
		CapUsersRead,
		CapUsersManage,
	},
	RoleSuperAdmin: {
		CapAlertsRead,
		CapAlertsCreate,
		CapAlertsManage,
		CapTicketsRead,
		CapTicketsCreate,
		CapTicketsResolve,
		CapMapView,
		CapAnalyticsView,
		CapUsersRead,
		CapUsersManage,
		CapCreatePoliceAccount,
		CapCreateAdminAccount,
	},
}

// Can returns true if the given role has the specified capability.
func Can(role Role, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Capabilities returns all capabilities granted to a role, sorted.
// Returns nil for unknown roles.
func Capabilities(role Role) []Capability {
	caps := roleCapabilities[role]
	if caps == nil {
		return nil
	}
	result := make([]Capability, len(caps))
	copy(result, caps)
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// IsKnownCapability reports whether c is granted to any role.
func IsKnownCapability(c Capability) bool {
	return Can(RoleSuperAdmin, c)
}
