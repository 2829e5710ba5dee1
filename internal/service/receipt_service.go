package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procurement/internal/apperror"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Over-receipt policies.
const (
	OverReceiptReject = "reject"
	OverReceiptFlag   = "flag"
)

// --- DTOs ---

type ReceiptLineDTO struct {
	POItemID string `json:"po_item_id" binding:"required"`
	Quantity int    `json:"quantity_received" binding:"required"`
}

type RecordReceiptDTO struct {
	Items []ReceiptLineDTO `json:"items" binding:"required,min=1,dive"`
	Notes string           `json:"notes"`
}

type ReceiptLineResponse struct {
	POItemID         uuid.UUID `json:"po_item_id"`
	QuantityReceived int       `json:"quantity_received"`
	OverReceived     bool      `json:"over_received"`
}

type ReceiptResponse struct {
	ID          uuid.UUID             `json:"id"`
	PONumber    string                `json:"po_number"`
	OrderStatus model.OrderStatus     `json:"order_status"`
	ReceivedBy  uuid.UUID             `json:"received_by"`
	ReceivedAt  time.Time             `json:"received_at"`
	Notes       string                `json:"notes"`
	Items       []ReceiptLineResponse `json:"items"`
}

// --- Interface ---

type ReceiptService interface {
	RecordReceipt(ctx context.Context, poNumber string, req RecordReceiptDTO, actor Actor) (*ReceiptResponse, error)
	ListReceipts(ctx context.Context, poNumber string) ([]ReceiptResponse, error)
}

type receiptService struct {
	tx       repository.TransactionManager
	requests repository.RequestRepository
	orders   repository.OrderRepository
	receipts repository.ReceiptRepository
	history  repository.HistoryRepository
	audit    repository.AuditRepository
	notifier Notifier
	policy   string
	now      Clock
	log      *zap.Logger
}

func NewReceiptService(
	tx repository.TransactionManager,
	requests repository.RequestRepository,
	orders repository.OrderRepository,
	receipts repository.ReceiptRepository,
	history repository.HistoryRepository,
	audit repository.AuditRepository,
	notifier Notifier,
	overReceiptPolicy string,
	clock Clock,
	log *zap.Logger,
) ReceiptService {
	if clock == nil {
		clock = systemClock
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if overReceiptPolicy == "" {
		overReceiptPolicy = OverReceiptReject
	}
	return &receiptService{
		tx:       tx,
		requests: requests,
		orders:   orders,
		receipts: receipts,
		history:  history,
		audit:    audit,
		notifier: notifier,
		policy:   overReceiptPolicy,
		now:      clock,
		log:      logger.OrNop(log),
	}
}

// --- Implementation ---

// RecordReceipt books delivered quantities against a purchase order and
// recomputes the order status from every receipt on file.
func (s *receiptService) RecordReceipt(ctx context.Context, poNumber string, dto RecordReceiptDTO, actor Actor) (*ReceiptResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if len(dto.Items) == 0 {
		return nil, apperror.Validation("a receipt needs at least one line")
	}

	type line struct {
		id  uuid.UUID
		qty int
	}
	lines := make([]line, 0, len(dto.Items))
	seen := make(map[uuid.UUID]bool, len(dto.Items))
	for i, l := range dto.Items {
		id, err := parseID(l.POItemID, "po_item_id")
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, apperror.Validation("order line %s appears more than once", id)
		}
		seen[id] = true
		if l.Quantity <= 0 {
			return nil, apperror.Validation("line %d: quantity received must be greater than 0", i+1)
		}
		lines = append(lines, line{id: id, qty: l.Quantity})
	}

	now := s.now().UTC()
	receipt := model.GoodsReceipt{
		ReceivedBy: actor.ID,
		ReceivedAt: now,
		Notes:      strings.TrimSpace(dto.Notes),
		CreatedAt:  now,
	}
	var (
		order    *model.PurchaseOrder
		status   model.OrderStatus
		overages []string
	)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByNumberForUpdate(txCtx, poNumber)
		if err != nil {
			return lookupErr(err, "purchase order", poNumber)
		}
		if order.Status == model.OrderCancelled {
			return apperror.Conflict("purchase order %s is cancelled", order.PONumber)
		}

		byID := make(map[uuid.UUID]model.PurchaseOrderItem, len(order.Items))
		for _, it := range order.Items {
			byID[it.ID] = it
		}

		received, err := s.receipts.ReceivedTotals(txCtx, orderItemIDs(order.Items))
		if err != nil {
			return fmt.Errorf("failed to sum received quantities: %w", err)
		}

		for _, l := range lines {
			it, ok := byID[l.id]
			if !ok {
				return apperror.Validation("line %s does not belong to purchase order %s", l.id, order.PONumber)
			}
			after := received[it.ID] + l.qty
			over := after > it.Quantity
			if over {
				if s.policy == OverReceiptReject {
					return apperror.Validation("%q: receiving %d would bring the total to %d of %d ordered",
						it.Name, l.qty, after, it.Quantity)
				}
				overages = append(overages, it.Name)
			}
			received[it.ID] = after
			receipt.Items = append(receipt.Items, model.GoodsReceiptItem{
				PurchaseOrderItemID: it.ID,
				QuantityReceived:    l.qty,
				OverReceived:        over,
			})
		}

		receipt.PurchaseOrderID = order.ID
		if err := s.receipts.Create(txCtx, &receipt); err != nil {
			return fmt.Errorf("failed to create goods receipt: %w", err)
		}

		status = model.DeriveOrderStatus(order.Status, order.Items, received)
		if status != order.Status {
			if err := s.orders.UpdateStatus(txCtx, order.ID, status); err != nil {
				return fmt.Errorf("failed to update purchase order status: %w", err)
			}
			order.Status = status
		}

		if err := s.completeRequests(txCtx, order, received, actor, now); err != nil {
			return err
		}

		return writeAudit(txCtx, s.audit, actor.ID, model.ActionRecordReceipt, receipt.ID.String(), order.PONumber, map[string]any{
			"lines":        len(receipt.Items),
			"order_status": status,
			"over_receipt": len(overages) > 0,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ReceiptRecorded()
	for _, name := range overages {
		metrics.OverReceipt()
		s.log.Warn("over-receipt accepted",
			zap.String("po_number", order.PONumber),
			zap.String("item", name))
	}
	s.log.Info("goods receipt recorded",
		zap.String("po_number", order.PONumber),
		zap.String("order_status", string(status)))

	notifyQuietly(ctx, s.notifier, s.log, order.CreatedBy, notify.TemplateGoodsReceived, map[string]any{
		"po_number":    order.PONumber,
		"order_status": status,
	})

	resp := toReceiptResponse(receipt, order.PONumber, status)
	return &resp, nil
}

// completeRequests moves ordered requests touched by this order to received
// once every purchase order line raised for them is fully received.
func (s *receiptService) completeRequests(ctx context.Context, order *model.PurchaseOrder, received map[uuid.UUID]int, actor Actor, now time.Time) error {
	seen := make(map[uuid.UUID]bool)
	for _, it := range order.Items {
		if seen[it.RequestID] {
			continue
		}
		seen[it.RequestID] = true

		req, err := s.requests.FindByID(ctx, it.RequestID)
		if err != nil {
			return lookupErr(err, "purchase request", it.RequestID.String())
		}
		if req.Status != model.RequestOrdered {
			continue
		}

		lines, err := s.orders.ListItemsByRequest(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("failed to load order lines for %s: %w", req.RequestNo, err)
		}
		var foreign []uuid.UUID
		for _, l := range lines {
			if _, ok := received[l.ID]; !ok {
				foreign = append(foreign, l.ID)
			}
		}
		totals := received
		if len(foreign) > 0 {
			other, err := s.receipts.ReceivedTotals(ctx, foreign)
			if err != nil {
				return fmt.Errorf("failed to sum received quantities: %w", err)
			}
			totals = make(map[uuid.UUID]int, len(received)+len(other))
			for k, v := range received {
				totals[k] = v
			}
			for k, v := range other {
				totals[k] = v
			}
		}

		done := true
		for _, l := range lines {
			if totals[l.ID] < l.Quantity {
				done = false
				break
			}
		}
		if !done {
			continue
		}

		ok, err := s.requests.UpdateStatus(ctx, req.ID, []model.RequestStatus{model.RequestOrdered}, model.RequestReceived)
		if err != nil {
			return fmt.Errorf("failed to update request status: %w", err)
		}
		if ok {
			msg := fmt.Sprintf("all ordered goods received (last on %s)", order.PONumber)
			if err := appendHistory(ctx, s.history, req, &actor.ID, model.HistoryReceived, msg, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *receiptService) ListReceipts(ctx context.Context, poNumber string) ([]ReceiptResponse, error) {
	order, err := s.orders.FindByNumber(ctx, poNumber)
	if err != nil {
		return nil, lookupErr(err, "purchase order", poNumber)
	}
	receipts, err := s.receipts.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goods receipts: %w", err)
	}

	res := make([]ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		res = append(res, toReceiptResponse(r, order.PONumber, order.Status))
	}
	return res, nil
}

func toReceiptResponse(r model.GoodsReceipt, poNumber string, status model.OrderStatus) ReceiptResponse {
	resp := ReceiptResponse{
		ID:          r.ID,
		PONumber:    poNumber,
		OrderStatus: status,
		ReceivedBy:  r.ReceivedBy,
		ReceivedAt:  r.ReceivedAt,
		Notes:       r.Notes,
		Items:       make([]ReceiptLineResponse, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		resp.Items = append(resp.Items, ReceiptLineResponse{
			POItemID:         it.PurchaseOrderItemID,
			QuantityReceived: it.QuantityReceived,
			OverReceived:     it.OverReceived,
		})
	}
	return resp
}
