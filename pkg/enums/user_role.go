package enums

import "fmt"

// UserRole is the closed set of roles a principal may hold.
type UserRole string

const (
	UserRoleAdmin           UserRole = "admin"
	UserRoleManager         UserRole = "manager"
	UserRoleWarehouseKeeper UserRole = "warehouse_keeper"
	UserRoleAccountant      UserRole = "accountant"
	UserRoleSales           UserRole = "sales"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleManager,
	UserRoleWarehouseKeeper,
	UserRoleAccountant,
	UserRoleSales,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// ValidUserRoles returns every known role.
func ValidUserRoles() []UserRole {
	roles := make([]UserRole, len(validUserRoles))
	copy(roles, validUserRoles)
	return roles
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
