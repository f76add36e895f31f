// Package access holds the role capability table consulted before every
// mutating operation.
package access

import "dokan/internal/domain"

type Capability string

const (
	Create           Capability = "create"
	Read             Capability = "read"
	Update           Capability = "update"
	Delete           Capability = "delete"
	ResetSystem      Capability = "resetSystem"
	ManageModerators Capability = "manageModerators"
	ManageProfile    Capability = "manageProfile"
)

var table = map[domain.Role]map[Capability]bool{
	domain.RoleAdmin: {
		Create:           true,
		Read:             true,
		Update:           true,
		Delete:           true,
		ResetSystem:      true,
		ManageModerators: true,
		ManageProfile:    true,
	},
	domain.RoleModerator: {
		Create: true,
		Read:   true,
		Update: true,
	},
}

func Allowed(role domain.Role, capability Capability) bool {
	return table[role][capability]
}

// Authorize returns PERMISSION_DENIED when role lacks capability.
func Authorize(role domain.Role, capability Capability) error {
	if !Allowed(role, capability) {
		return domain.PermissionDenied(string(capability))
	}
	return nil
}
