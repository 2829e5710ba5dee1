package service

import (
	"context"
	"testing"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(repository.NewCatalogRepository(db), repository.NewAuditRepository(db), repository.NewTransactionManager(db))
	ctx := context.Background()
	actor := Actor{ID: uuid.New(), Role: model.RolePurchaser}

	paper, err := svc.CreateItem(ctx, actor, CatalogItemRequest{SKU: " a4-500 ", Name: "A4 paper", Unit: "ream", DefaultPrice: decimal.NewFromInt(4)})
	require.NoError(t, err)
	assert.Equal(t, "A4-500", paper.SKU)

	pens, err := svc.CreateItem(ctx, actor, CatalogItemRequest{SKU: "PEN-BLK", Name: "Black pen", DefaultPrice: decimal.NewFromFloat(0.5)})
	require.NoError(t, err)

	_, err = svc.CreateItem(ctx, actor, CatalogItemRequest{SKU: "a4-500", Name: "Duplicate"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = svc.CreateItem(ctx, actor, CatalogItemRequest{SKU: "NEG", Name: "Negative", DefaultPrice: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = svc.CreateItem(ctx, actor, CatalogItemRequest{SKU: "", Name: "No sku"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.UpdateItem(ctx, actor, pens.ID, CatalogItemRequest{SKU: "A4-500", Name: "Black pen"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	renamed, err := svc.UpdateItem(ctx, actor, paper.ID, CatalogItemRequest{SKU: "A4-500", Name: "A4 paper 80gsm", Unit: "ream", DefaultPrice: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "A4 paper 80gsm", renamed.Name)
	assert.True(t, renamed.DefaultPrice.Equal(decimal.NewFromInt(5)))

	items, total, err := svc.ListItems(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "A4-500", items[0].SKU)

	require.NoError(t, svc.DeleteItem(ctx, actor, pens.ID))
	_, err = svc.GetItem(ctx, pens.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
