package domain

import "time"

// Permission names a single boolean capability.
type Permission string

const (
	PermManageUsers       Permission = "manage-users"
	PermManageProducts    Permission = "manage-products"
	PermManageOrders      Permission = "manage-orders"
	PermManageSettings    Permission = "manage-settings"
	PermPromoteUsers      Permission = "promote-users"
	PermViewAnalytics     Permission = "view-analytics"
	PermManagePermissions Permission = "manage-permissions"
)

// AllPermissions lists every capability in table order.
var AllPermissions = []Permission{
	PermManageUsers,
	PermManageProducts,
	PermManageOrders,
	PermManageSettings,
	PermPromoteUsers,
	PermViewAnalytics,
	PermManagePermissions,
}

// Permissions is the capability set attached to an account.
type Permissions struct {
	ManageUsers       bool `json:"manageUsers"`
	ManageProducts    bool `json:"manageProducts"`
	ManageOrders      bool `json:"manageOrders"`
	ManageSettings    bool `json:"manageSettings"`
	PromoteUsers      bool `json:"promoteUsers"`
	ViewAnalytics     bool `json:"viewAnalytics"`
	ManagePermissions bool `json:"managePermissions"`
}

// PermissionOverride records an explicit superadmin-set permission table.
type PermissionOverride struct {
	Permissions Permissions `json:"permissions"`
	SetBy       string      `json:"setBy"`
	SetAt       time.Time   `json:"setAt"`
	Reason      *string     `json:"reason,omitempty"`
}

// PermissionsForRole derives the permission table for role. Unknown roles
// get no capabilities.
func PermissionsForRole(role Role) Permissions {
	switch role {
	case RoleVendor:
		return Permissions{
			ManageProducts: true,
			ManageOrders:   true,
			ViewAnalytics:  true,
		}
	case RoleAdmin:
		return Permissions{
			ManageUsers:    true,
			ManageProducts: true,
			ManageOrders:   true,
			ManageSettings: true,
			ViewAnalytics:  true,
		}
	case RoleSuperadmin:
		return Permissions{
			ManageUsers:       true,
			ManageProducts:    true,
			ManageOrders:      true,
			ManageSettings:    true,
			PromoteUsers:      true,
			ViewAnalytics:     true,
			ManagePermissions: true,
		}
	default:
		return Permissions{}
	}
}

// Has reports whether the named capability is granted.
func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case PermManageUsers:
		return p.ManageUsers
	case PermManageProducts:
		return p.ManageProducts
	case PermManageOrders:
		return p.ManageOrders
	case PermManageSettings:
		return p.ManageSettings
	case PermPromoteUsers:
		return p.PromoteUsers
	case PermViewAnalytics:
		return p.ViewAnalytics
	case PermManagePermissions:
		return p.ManagePermissions
	}
	return false
}

// Granted lists the capabilities set to true.
func (p Permissions) Granted() []Permission {
	out := make([]Permission, 0, len(AllPermissions))
	for _, perm := range AllPermissions {
		if p.Has(perm) {
			out = append(out, perm)
		}
	}
	return out
}

// ValidPermission reports whether name is a known capability.
func ValidPermission(name string) bool {
	for _, perm := range AllPermissions {
		if string(perm) == name {
			return true
		}
	}
	return false
}
