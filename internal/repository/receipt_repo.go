package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(ctx context.Context, receipt *model.GoodsReceipt) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.GoodsReceipt, error)
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ReceivedTotals(ctx context.Context, orderItemIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type receiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) Create(ctx context.Context, receipt *model.GoodsReceipt) error {
	return GetDB(ctx, r.db).Create(receipt).Error
}

func (r *receiptRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.GoodsReceipt, error) {
	var receipts []model.GoodsReceipt
	if err := GetDB(ctx, r.db).Preload("Items").
		Where("purchase_order_id = ?", orderID).
		Order("received_at ASC").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *receiptRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.GoodsReceipt{}).Where("purchase_order_id = ?", orderID).Count(&n).Error
	return n, err
}

// ReceivedTotals sums received quantity across all receipts for each order item.
func (r *receiptRepository) ReceivedTotals(ctx context.Context, orderItemIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	totals := make(map[uuid.UUID]int, len(orderItemIDs))
	if len(orderItemIDs) == 0 {
		return totals, nil
	}

	var rows []struct {
		PurchaseOrderItemID uuid.UUID
		Received            int
	}
	if err := GetDB(ctx, r.db).Model(&model.GoodsReceiptItem{}).
		Select("purchase_order_item_id, COALESCE(SUM(quantity_received), 0) AS received").
		Where("purchase_order_item_id IN ?", orderItemIDs).
		Group("purchase_order_item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		totals[row.PurchaseOrderItemID] = row.Received
	}
	return totals, nil
}
