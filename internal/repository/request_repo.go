package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows request listings. Zero values are ignored.
type RequestFilter struct {
	Status      model.RequestStatus
	RequesterID *uuid.UUID
	From, To    time.Time
	Page, Limit int
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.PurchaseRequest, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SumCommitted(ctx context.Context, start, end time.Time, excludeID *uuid.UUID) (decimal.Decimal, error)

	FindItemForUpdate(ctx context.Context, id uuid.UUID) (*model.RequestItem, error)
	ListItems(ctx context.Context, requestID uuid.UUID) ([]model.RequestItem, error)
	ListOrderableItems(ctx context.Context) ([]model.RequestItem, error)
	AddOrderedQuantity(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	ReleaseOrderedQuantity(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	SetItemImage(ctx context.Context, itemID uuid.UUID, ref string) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).
		Preload("Requester").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Preload("Steps.Approver").
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, f RequestFilter) ([]model.PurchaseRequest, int64, error) {
	var requests []model.PurchaseRequest
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.RequesterID != nil {
			db = db.Where("requester_id = ?", *f.RequesterID)
		}
		if !f.From.IsZero() {
			db = db.Where("created_at >= ?", f.From)
		}
		if !f.To.IsZero() {
			db = db.Where("created_at < ?", f.To)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.PurchaseRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	if err := db.Scopes(scope).
		Preload("Requester").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Order("created_at DESC, request_no DESC").
		Offset(offset).Limit(f.Limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// UpdateStatus moves a request to `to` only while it is in one of `from`.
// It reports false when the row was not in an expected state.
func (r *requestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a request together with its items, steps and history.
func (r *requestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", id).Delete(&model.RequestHistory{}).Error; err != nil {
		return err
	}
	if err := db.Where("request_id = ?", id).Delete(&model.ApprovalStep{}).Error; err != nil {
		return err
	}
	if err := db.Where("request_id = ?", id).Delete(&model.RequestItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.PurchaseRequest{}).Error
}

// SumCommitted totals requests created in [start, end) that still count
// toward budget. excludeID leaves one request out of the sum.
func (r *requestRepository) SumCommitted(ctx context.Context, start, end time.Time, excludeID *uuid.UUID) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	q := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Where("status NOT IN ?", model.ExcludedFromBudget())
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	if err := q.Pluck("total_amount", &totals).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}

func (r *requestRepository) FindItemForUpdate(ctx context.Context, id uuid.UUID) (*model.RequestItem, error) {
	var item model.RequestItem
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *requestRepository) ListItems(ctx context.Context, requestID uuid.UUID) ([]model.RequestItem, error) {
	var items []model.RequestItem
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).
		Order("line_no ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrderableItems returns items of approved requests that still have
// quantity to order, oldest request first.
func (r *requestRepository) ListOrderableItems(ctx context.Context) ([]model.RequestItem, error) {
	var items []model.RequestItem
	if err := GetDB(ctx, r.db).
		Joins("JOIN purchase_requests ON purchase_requests.id = request_items.request_id").
		Where("purchase_requests.status = ?", model.RequestApproved).
		Where("request_items.quantity > request_items.quantity_ordered").
		Preload("Request").
		Order("purchase_requests.created_at ASC, purchase_requests.request_no ASC, request_items.line_no ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddOrderedQuantity raises quantity_ordered by qty unless that would pass
// the requested quantity. It reports false when the guard rejected the update.
func (r *requestRepository) AddOrderedQuantity(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.RequestItem{}).
		Where("id = ? AND quantity_ordered + ? <= quantity", itemID, qty).
		UpdateColumn("quantity_ordered", gorm.Expr("quantity_ordered + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseOrderedQuantity lowers quantity_ordered by qty, never below zero.
func (r *requestRepository) ReleaseOrderedQuantity(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.RequestItem{}).
		Where("id = ? AND quantity_ordered >= ?", itemID, qty).
		UpdateColumn("quantity_ordered", gorm.Expr("quantity_ordered - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *requestRepository) SetItemImage(ctx context.Context, itemID uuid.UUID, ref string) error {
	return GetDB(ctx, r.db).Model(&model.RequestItem{}).
		Where("id = ?", itemID).
		Update("image_ref", ref).Error
}
