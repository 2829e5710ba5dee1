package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CatalogItemRequest struct {
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Unit         string          `json:"unit"`
	DefaultPrice decimal.Decimal `json:"default_price"`
}

type CatalogItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type CatalogService interface {
	CreateItem(ctx context.Context, actor Actor, req CatalogItemRequest) (CatalogItemResponse, error)
	UpdateItem(ctx context.Context, actor Actor, id uuid.UUID, req CatalogItemRequest) (CatalogItemResponse, error)
	DeleteItem(ctx context.Context, actor Actor, id uuid.UUID) error
	GetItem(ctx context.Context, id uuid.UUID) (CatalogItemResponse, error)
	ListItems(ctx context.Context, search string, page, limit int) ([]CatalogItemResponse, int64, error)
}

type catalogService struct {
	catalogRepo repository.CatalogRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewCatalogService(catalogRepo repository.CatalogRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) CatalogService {
	return &catalogService{catalogRepo: catalogRepo, auditRepo: auditRepo, txManager: txManager}
}

func normaliseCatalogItem(req CatalogItemRequest) (CatalogItemRequest, error) {
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return req, apperror.Validation("sku and name are required")
	}
	if req.DefaultPrice.IsNegative() {
		return req, apperror.Validation("default price must not be negative")
	}
	return req, nil
}

func (s *catalogService) CreateItem(ctx context.Context, actor Actor, req CatalogItemRequest) (CatalogItemResponse, error) {
	req, err := normaliseCatalogItem(req)
	if err != nil {
		return CatalogItemResponse{}, err
	}

	item := model.CatalogItem{SKU: req.SKU, Name: req.Name, Unit: req.Unit, DefaultPrice: req.DefaultPrice}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureSKUFree(txCtx, req.SKU, uuid.Nil); err != nil {
			return err
		}
		if err := s.catalogRepo.Create(txCtx, &item); err != nil {
			return fmt.Errorf("failed to create catalog item: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionCreateCatalog, item.ID.String(), item.SKU, map[string]any{
			"name":          item.Name,
			"default_price": item.DefaultPrice.StringFixed(2),
		})
	})
	if err != nil {
		return CatalogItemResponse{}, err
	}
	return toCatalogResponse(item), nil
}

func (s *catalogService) UpdateItem(ctx context.Context, actor Actor, id uuid.UUID, req CatalogItemRequest) (CatalogItemResponse, error) {
	req, err := normaliseCatalogItem(req)
	if err != nil {
		return CatalogItemResponse{}, err
	}

	var item *model.CatalogItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		item, err = s.catalogRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "catalog item", id.String())
		}
		if err := s.ensureSKUFree(txCtx, req.SKU, id); err != nil {
			return err
		}
		item.SKU = req.SKU
		item.Name = req.Name
		item.Unit = req.Unit
		item.DefaultPrice = req.DefaultPrice
		if err := s.catalogRepo.Update(txCtx, item); err != nil {
			return fmt.Errorf("failed to update catalog item: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionUpdateCatalog, item.ID.String(), item.SKU, map[string]any{
			"name":          item.Name,
			"default_price": item.DefaultPrice.StringFixed(2),
		})
	})
	if err != nil {
		return CatalogItemResponse{}, err
	}
	return toCatalogResponse(*item), nil
}

func (s *catalogService) ensureSKUFree(ctx context.Context, sku string, self uuid.UUID) error {
	existing, err := s.catalogRepo.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if existing.ID != self {
		return apperror.Conflict("sku %s is already in use", sku)
	}
	return nil
}

func (s *catalogService) DeleteItem(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.catalogRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "catalog item", id.String())
		}
		if err := s.catalogRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete catalog item: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionDeleteCatalog, item.ID.String(), item.SKU, nil)
	})
}

func (s *catalogService) GetItem(ctx context.Context, id uuid.UUID) (CatalogItemResponse, error) {
	item, err := s.catalogRepo.FindByID(ctx, id)
	if err != nil {
		return CatalogItemResponse{}, lookupErr(err, "catalog item", id.String())
	}
	return toCatalogResponse(*item), nil
}

func (s *catalogService) ListItems(ctx context.Context, search string, page, limit int) ([]CatalogItemResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	items, total, err := s.catalogRepo.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list catalog items: %w", err)
	}

	res := make([]CatalogItemResponse, 0, len(items))
	for _, it := range items {
		res = append(res, toCatalogResponse(it))
	}
	return res, total, nil
}

func toCatalogResponse(c model.CatalogItem) CatalogItemResponse {
	return CatalogItemResponse{
		ID:           c.ID,
		SKU:          c.SKU,
		Name:         c.Name,
		Unit:         c.Unit,
		DefaultPrice: c.DefaultPrice,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
