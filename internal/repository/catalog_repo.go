package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CatalogRepository interface {
	Create(ctx context.Context, item *model.CatalogItem) error
	Update(ctx context.Context, item *model.CatalogItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error)
	FindBySKU(ctx context.Context, sku string) (*model.CatalogItem, error)
	List(ctx context.Context, search string, page, limit int) ([]model.CatalogItem, int64, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) Create(ctx context.Context, item *model.CatalogItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *catalogRepository) Update(ctx context.Context, item *model.CatalogItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *catalogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.CatalogItem{}).Error
}

func (r *catalogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error) {
	var item model.CatalogItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *catalogRepository) FindBySKU(ctx context.Context, sku string) (*model.CatalogItem, error) {
	var item model.CatalogItem
	if err := GetDB(ctx, r.db).Where("sku = ?", sku).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *catalogRepository) List(ctx context.Context, search string, page, limit int) ([]model.CatalogItem, int64, error) {
	var items []model.CatalogItem
	var total int64

	query := GetDB(ctx, r.db).Model(&model.CatalogItem{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR sku LIKE ?", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("sku ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
