package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"dokan/internal/domain"
)

func TestModeratorCapabilities(t *testing.T) {
	for _, c := range []Capability{Create, Read, Update} {
		assert.NoError(t, Authorize(domain.RoleModerator, c), c)
	}
	for _, c := range []Capability{Delete, ResetSystem, ManageModerators, ManageProfile} {
		err := Authorize(domain.RoleModerator, c)
		assert.True(t, errors.Is(err, domain.ErrPermissionDenied), c)
	}
}

func TestAdminHasEveryCapability(t *testing.T) {
	for _, c := range []Capability{Create, Read, Update, Delete, ResetSystem, ManageModerators, ManageProfile} {
		assert.True(t, Allowed(domain.RoleAdmin, c), c)
	}
}

func TestUnknownRoleIsDenied(t *testing.T) {
	assert.False(t, Allowed(domain.Role("GUEST"), Read))
}
