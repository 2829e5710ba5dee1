package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderableItem is one line of the procurement queue.
type OrderableItem struct {
	RequestItemID   uuid.UUID       `json:"request_item_id"`
	RequestID       uuid.UUID       `json:"request_id"`
	RequestNo       string          `json:"request_no"`
	RequestedAt     time.Time       `json:"requested_at"`
	LineNo          int             `json:"line_no"`
	Name            string          `json:"name"`
	Detail          string          `json:"detail"`
	Quantity        int             `json:"quantity"`
	QuantityOrdered int             `json:"quantity_ordered"`
	Remaining       int             `json:"remaining"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	CatalogItemID   *uuid.UUID      `json:"catalog_item_id"`
}

type ProcurementService interface {
	ListOrderableItems(ctx context.Context) ([]OrderableItem, error)
}

type procurementService struct {
	requests repository.RequestRepository
}

func NewProcurementService(requests repository.RequestRepository) ProcurementService {
	return &procurementService{requests: requests}
}

// ListOrderableItems reads the live queue straight from the store, oldest request first.
func (s *procurementService) ListOrderableItems(ctx context.Context) ([]OrderableItem, error) {
	items, err := s.requests.ListOrderableItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orderable items: %w", err)
	}

	res := make([]OrderableItem, 0, len(items))
	for _, it := range items {
		row := OrderableItem{
			RequestItemID:   it.ID,
			RequestID:       it.RequestID,
			LineNo:          it.LineNo,
			Name:            it.Name,
			Detail:          it.Detail,
			Quantity:        it.Quantity,
			QuantityOrdered: it.QuantityOrdered,
			Remaining:       it.Remaining(),
			UnitPrice:       it.UnitPrice,
			CatalogItemID:   it.CatalogItemID,
		}
		if it.Request != nil {
			row.RequestNo = it.Request.RequestNo
			row.RequestedAt = it.Request.CreatedAt
		}
		res = append(res, row)
	}
	return res, nil
}
