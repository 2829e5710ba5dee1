package service

import (
	"context"
	"testing"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededRoleService(t *testing.T) RoleService {
	t.Helper()
	db := newTestDB(t)
	svc := NewRoleService(repository.NewTransactionManager(db), repository.NewRoleRepository(db))
	require.NoError(t, svc.SeedDefaultRolesAndPermissions(context.Background()))
	return svc
}

func TestRoleService_Seed(t *testing.T) {
	svc := newSeededRoleService(t)
	ctx := context.Background()

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 5)

	perms, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(defaultPermissions))

	admin, err := svc.GetPermissionsByRoleName(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admin, len(defaultPermissions))

	staff, err := svc.GetPermissionsByRoleName(ctx, model.RoleStaff)
	require.NoError(t, err)
	assert.Contains(t, staff, model.PermRequestsCreate)
	assert.NotContains(t, staff, model.PermOrdersWrite)

	// seeding twice leaves one row per role and permission
	require.NoError(t, svc.SeedDefaultRolesAndPermissions(ctx))
	roles, err = svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 5)
}

func TestRoleService_UpdateRolePermissions(t *testing.T) {
	svc := newSeededRoleService(t)
	ctx := context.Background()

	role, err := svc.UpdateRolePermissions(ctx, model.RoleStaff, UpdateRolePermissionsRequest{
		Codes: []string{model.PermRequestsRead, model.PermVendorsRead},
	})
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 2)

	codes, err := svc.GetPermissionsByRoleName(ctx, model.RoleStaff)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{model.PermRequestsRead, model.PermVendorsRead}, codes)

	_, err = svc.UpdateRolePermissions(ctx, model.RoleStaff, UpdateRolePermissionsRequest{Codes: []string{"requests.fly"}})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.UpdateRolePermissions(ctx, model.RoleAdmin, UpdateRolePermissionsRequest{})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.UpdateRolePermissions(ctx, "auditor", UpdateRolePermissionsRequest{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
