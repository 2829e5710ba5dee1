package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.PurchaseOrder) error
	FindByNumber(ctx context.Context, poNumber string) (*model.PurchaseOrder, error)
	FindByNumberForUpdate(ctx context.Context, poNumber string) (*model.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
	MarkCancelled(ctx context.Context, order *model.PurchaseOrder) error
	List(ctx context.Context, status model.OrderStatus, page, limit int) ([]model.PurchaseOrder, int64, error)
	ListItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]model.PurchaseOrderItem, error)
	CountItemsByRequest(ctx context.Context, requestID uuid.UUID) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByNumber(ctx context.Context, poNumber string) (*model.PurchaseOrder, error) {
	var order model.PurchaseOrder
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Vendor").
		First(&order, "po_number = ?", poNumber).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByNumberForUpdate locks the order row, then loads its items.
func (r *orderRepository) FindByNumberForUpdate(ctx context.Context, poNumber string) (*model.PurchaseOrder, error) {
	db := GetDB(ctx, r.db)
	var order model.PurchaseOrder
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "po_number = ?", poNumber).Error; err != nil {
		return nil, err
	}
	if err := db.Where("purchase_order_id = ?", order.ID).
		Order("line_no ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	return GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Where("id = ?", id).Update("status", status).Error
}

func (r *orderRepository) MarkCancelled(ctx context.Context, order *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":       model.OrderCancelled,
			"cancelled_at": order.CancelledAt,
		}).Error
}

func (r *orderRepository) List(ctx context.Context, status model.OrderStatus, page, limit int) ([]model.PurchaseOrder, int64, error) {
	var orders []model.PurchaseOrder
	var total int64

	db := GetDB(ctx, r.db)
	count := db.Model(&model.PurchaseOrder{})
	if status != "" {
		count = count.Where("status = ?", status)
	}
	if err := count.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetch := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).Preload("Vendor")
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	if err := fetch.Order("created_at DESC, po_number DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CountItemsByRequest counts order lines derived from a request on orders of
// any status, cancelled ones included.
func (r *orderRepository) CountItemsByRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrderItem{}).
		Where("request_id = ?", requestID).
		Count(&n).Error
	return n, err
}

// ListItemsByRequest returns order lines derived from a request, excluding cancelled orders.
func (r *orderRepository) ListItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]model.PurchaseOrderItem, error) {
	var items []model.PurchaseOrderItem
	if err := GetDB(ctx, r.db).
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_items.purchase_order_id").
		Where("purchase_order_items.request_id = ?", requestID).
		Where("purchase_orders.status <> ?", model.OrderCancelled).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
