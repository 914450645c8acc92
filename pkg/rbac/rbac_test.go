package rbac

import (
	"testing"

	"github.com/NicolasHaas/gochat/pkg/model"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role model.GroupRole
		perm model.GroupPermission
		want bool
	}{
		{model.GroupRoleOwner, model.PermEditGroup, true},
		{model.GroupRoleManager, model.PermEditGroup, true},
		{model.GroupRoleMember, model.PermEditGroup, false},
		{model.GroupRole(42), model.PermEditGroup, false},
		{model.GroupRoleOwner, model.GroupPermission(7), false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%v, %d) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}
