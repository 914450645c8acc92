// Package rbac provides group role access control checks.
package rbac

import "github.com/NicolasHaas/gochat/pkg/model"

// permissionMatrix maps group roles to their allowed permissions.
var permissionMatrix = map[model.GroupRole]map[model.GroupPermission]bool{
	model.GroupRoleOwner: {
		model.PermEditGroup: true,
	},
	model.GroupRoleManager: {
		model.PermEditGroup: true,
	},
	model.GroupRoleMember: {
		// No special permissions, can only chat
	},
}

// HasPermission checks if a group role has a specific permission.
func HasPermission(role model.GroupRole, perm model.GroupPermission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}
