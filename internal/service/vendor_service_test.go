package service

import (
	"context"
	"testing"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorService_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	audit := repository.NewAuditRepository(db)
	svc := NewVendorService(repository.NewVendorRepository(db), audit, repository.NewTransactionManager(db))
	ctx := context.Background()
	actor := Actor{ID: uuid.New(), Role: model.RolePurchaser}

	_, err := svc.CreateVendor(ctx, actor, CreateVendorRequest{Name: "  "})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = svc.CreateVendor(ctx, actor, CreateVendorRequest{Name: "Acme", Email: "nope"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	acme, err := svc.CreateVendor(ctx, actor, CreateVendorRequest{Name: " Acme Paper ", Email: "sales@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Paper", acme.Name)
	assert.True(t, acme.IsActive)
	_, err = svc.CreateVendor(ctx, actor, CreateVendorRequest{Name: "Blue Office"})
	require.NoError(t, err)

	inactive := false
	phone := "0123"
	updated, err := svc.UpdateVendor(ctx, actor, acme.ID, UpdateVendorRequest{IsActive: &inactive, Phone: &phone})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "0123", updated.Phone)
	assert.Equal(t, "sales@acme.test", updated.Email)

	list, total, err := svc.ListVendors(ctx, "acme", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, acme.ID, list[0].ID)

	require.NoError(t, svc.DeleteVendor(ctx, actor, acme.ID))
	_, err = svc.GetVendor(ctx, acme.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteVendor(ctx, actor, acme.ID), apperror.ErrNotFound)

	for _, action := range []string{model.ActionCreateVendor, model.ActionUpdateVendor, model.ActionDeleteVendor} {
		_, n, err := audit.List(ctx, repositoryAuditFilter(action))
		require.NoError(t, err)
		assert.NotZero(t, n, action)
	}
}
