package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"procurement/internal/apperror"
	"procurement/internal/document"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type OrderLineDTO struct {
	RequestItemID string          `json:"request_item_id" binding:"required"`
	Quantity      int             `json:"quantity" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	QuotationRef  string          `json:"quotation_ref"`
}

type CreateOrderDTO struct {
	VendorID string         `json:"vendor_id"`
	Note     string         `json:"note"`
	Items    []OrderLineDTO `json:"items" binding:"required,min=1,dive"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type OrderItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	LineNo        int             `json:"line_no"`
	RequestItemID uuid.UUID       `json:"request_item_id"`
	RequestID     uuid.UUID       `json:"request_id"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	QuotationRef  string          `json:"quotation_ref"`
	Received      int             `json:"received"`
}

type OrderResponse struct {
	ID          uuid.UUID           `json:"id"`
	PONumber    string              `json:"po_number"`
	Status      model.OrderStatus   `json:"status"`
	VendorID    *uuid.UUID          `json:"vendor_id"`
	VendorName  string              `json:"vendor_name"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Note        string              `json:"note"`
	CreatedBy   uuid.UUID           `json:"created_by"`
	SentAt      *time.Time          `json:"sent_at"`
	CancelledAt *time.Time          `json:"cancelled_at"`
	Items       []OrderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
}

// RenderedDocument is a generated file. Ref is empty when the stored copy
// could not be written.
type RenderedDocument struct {
	Name        string
	ContentType string
	Content     []byte
	Ref         string
}

// --- Interface ---

type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, req CreateOrderDTO) (*OrderResponse, error)
	CancelOrder(ctx context.Context, poNumber string, actor Actor, reason string) (*OrderResponse, error)
	GetOrder(ctx context.Context, poNumber string) (*OrderResponse, error)
	ListOrders(ctx context.Context, status string, page, limit int) ([]OrderResponse, int64, error)
	RenderOrderDocument(ctx context.Context, poNumber string) (*RenderedDocument, error)
}

type orderService struct {
	tx        repository.TransactionManager
	requests  repository.RequestRepository
	orders    repository.OrderRepository
	receipts  repository.ReceiptRepository
	vendors   repository.VendorRepository
	history   repository.HistoryRepository
	sequences repository.SequenceRepository
	audit     repository.AuditRepository
	notifier  Notifier
	renderer  DocumentRenderer
	files     FileStore
	now       Clock
	log       *zap.Logger
}

func NewOrderService(
	tx repository.TransactionManager,
	requests repository.RequestRepository,
	orders repository.OrderRepository,
	receipts repository.ReceiptRepository,
	vendors repository.VendorRepository,
	history repository.HistoryRepository,
	sequences repository.SequenceRepository,
	audit repository.AuditRepository,
	notifier Notifier,
	renderer DocumentRenderer,
	files FileStore,
	clock Clock,
	log *zap.Logger,
) OrderService {
	if clock == nil {
		clock = systemClock
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &orderService{
		tx:        tx,
		requests:  requests,
		orders:    orders,
		receipts:  receipts,
		vendors:   vendors,
		history:   history,
		sequences: sequences,
		audit:     audit,
		notifier:  notifier,
		renderer:  renderer,
		files:     files,
		now:       clock,
		log:       logger.OrNop(log),
	}
}

// --- Implementation ---

type orderLine struct {
	lineNo       int
	itemID       uuid.UUID
	quantity     int
	unitPrice    decimal.Decimal
	quotationRef string
}

func (s *orderService) parseLines(in []OrderLineDTO) ([]orderLine, error) {
	if len(in) == 0 {
		return nil, apperror.Validation("a purchase order needs at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(in))
	lines := make([]orderLine, 0, len(in))
	for i, l := range in {
		id, err := parseID(l.RequestItemID, "request_item_id")
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, apperror.Validation("item %s is selected more than once", id)
		}
		seen[id] = true
		if l.Quantity < 1 {
			return nil, apperror.Validation("line %d: quantity must be at least 1", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, apperror.Validation("line %d: unit price must not be negative", i+1)
		}
		lines = append(lines, orderLine{
			lineNo:       i + 1,
			itemID:       id,
			quantity:     l.Quantity,
			unitPrice:    l.UnitPrice,
			quotationRef: strings.TrimSpace(l.QuotationRef),
		})
	}
	return lines, nil
}

// CreateOrder raises a sent purchase order against approved request items
// and books the ordered quantities on them in the same transaction.
func (s *orderService) CreateOrder(ctx context.Context, actor Actor, dto CreateOrderDTO) (*OrderResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	lines, err := s.parseLines(dto.Items)
	if err != nil {
		return nil, err
	}

	var vendorID *uuid.UUID
	if dto.VendorID != "" {
		id, err := parseID(dto.VendorID, "vendor_id")
		if err != nil {
			return nil, err
		}
		if _, err := s.vendors.FindByID(ctx, id); err != nil {
			return nil, lookupErr(err, "vendor", id.String())
		}
		vendorID = &id
	}

	now := s.now().UTC()
	month := model.MonthOf(now)
	order := model.PurchaseOrder{
		Status:    model.OrderSent,
		VendorID:  vendorID,
		Note:      strings.TrimSpace(dto.Note),
		CreatedBy: actor.ID,
		SentAt:    &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var affected []*model.PurchaseRequest

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Items are locked before their requests, each set in id order, the
		// same order CancelOrder uses.
		locked := make([]orderLine, len(lines))
		copy(locked, lines)
		sort.Slice(locked, func(i, j int) bool {
			return bytes.Compare(locked[i].itemID[:], locked[j].itemID[:]) < 0
		})

		items := make(map[uuid.UUID]*model.RequestItem, len(lines))
		var requestIDs []uuid.UUID
		for _, l := range locked {
			item, err := s.requests.FindItemForUpdate(txCtx, l.itemID)
			if err != nil {
				return lookupErr(err, "request item", l.itemID.String())
			}
			items[item.ID] = item
			requestIDs = append(requestIDs, item.RequestID)
		}

		parents := make(map[uuid.UUID]*model.PurchaseRequest)
		for _, id := range sortedUnique(requestIDs) {
			req, err := s.requests.FindByIDForUpdate(txCtx, id)
			if err != nil {
				return lookupErr(err, "purchase request", id.String())
			}
			if req.Status != model.RequestApproved {
				return apperror.Conflict("request %s is %s; only approved requests can be ordered", req.RequestNo, req.Status)
			}
			parents[id] = req
			affected = append(affected, req)
		}

		for _, l := range locked {
			item := items[l.itemID]
			req := parents[item.RequestID]
			if l.quantity > item.Remaining() {
				return apperror.Conflict("item %q of %s has %d left to order, %d requested", item.Name, req.RequestNo, item.Remaining(), l.quantity)
			}
			ok, err := s.requests.AddOrderedQuantity(txCtx, item.ID, l.quantity)
			if err != nil {
				return fmt.Errorf("failed to book ordered quantity: %w", err)
			}
			if !ok {
				return apperror.Conflict("item %q of %s was ordered concurrently", item.Name, req.RequestNo)
			}
		}

		n, err := s.sequences.Next(txCtx, orderPrefix, month)
		if err != nil {
			return err
		}
		order.PONumber = documentNumber(orderPrefix, month, n)

		total := decimal.Zero
		for _, l := range lines {
			item := items[l.itemID]
			poItem := model.PurchaseOrderItem{
				RequestItemID: item.ID,
				RequestID:     item.RequestID,
				LineNo:        l.lineNo,
				Name:          item.Name,
				Quantity:      l.quantity,
				UnitPrice:     l.unitPrice,
				QuotationRef:  l.quotationRef,
				CreatedAt:     now,
			}
			total = total.Add(l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity))))
			order.Items = append(order.Items, poItem)
		}
		order.TotalAmount = total

		if err := s.orders.Create(txCtx, &order); err != nil {
			return fmt.Errorf("failed to create purchase order: %w", err)
		}

		for _, req := range affected {
			count := 0
			for _, it := range order.Items {
				if it.RequestID == req.ID {
					count++
				}
			}
			msg := fmt.Sprintf("%d item(s) ordered on %s", count, order.PONumber)
			if err := appendHistory(txCtx, s.history, req, &actor.ID, model.HistoryOrdered, msg, now); err != nil {
				return err
			}
			if err := s.markOrderedIfComplete(txCtx, req); err != nil {
				return err
			}
		}

		return writeAudit(txCtx, s.audit, actor.ID, model.ActionCreateOrder, order.ID.String(), order.PONumber, map[string]any{
			"items": len(order.Items),
			"total": total.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderEvent("created")
	s.log.Info("purchase order created",
		zap.String("po_number", order.PONumber),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	for _, req := range affected {
		notifyQuietly(ctx, s.notifier, s.log, req.RequesterID, notify.TemplateOrderSent, map[string]any{
			"po_number":  order.PONumber,
			"request_id": req.ID,
			"request_no": req.RequestNo,
		})
	}

	return s.GetOrder(ctx, order.PONumber)
}

// markOrderedIfComplete moves an approved request to ordered once every item is fully ordered.
func (s *orderService) markOrderedIfComplete(ctx context.Context, req *model.PurchaseRequest) error {
	items, err := s.requests.ListItems(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load request items: %w", err)
	}
	for _, it := range items {
		if it.Remaining() > 0 {
			return nil
		}
	}
	if _, err := s.requests.UpdateStatus(ctx, req.ID, []model.RequestStatus{model.RequestApproved}, model.RequestOrdered); err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	req.Status = model.RequestOrdered
	return nil
}

// CancelOrder withdraws an order nothing has been received against and
// returns its quantities to the procurement queue.
func (s *orderService) CancelOrder(ctx context.Context, poNumber string, actor Actor, reason string) (*OrderResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByNumberForUpdate(txCtx, poNumber)
		if err != nil {
			return lookupErr(err, "purchase order", poNumber)
		}
		if order.Status != model.OrderSent && order.Status != model.OrderPending {
			return apperror.Conflict("purchase order %s is %s and cannot be cancelled", order.PONumber, order.Status)
		}
		received, err := s.receipts.CountByOrder(txCtx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to count receipts: %w", err)
		}
		if received > 0 {
			return apperror.Conflict("purchase order %s already has goods receipts", order.PONumber)
		}

		poItems := make([]model.PurchaseOrderItem, len(order.Items))
		copy(poItems, order.Items)
		sort.Slice(poItems, func(i, j int) bool {
			return bytes.Compare(poItems[i].RequestItemID[:], poItems[j].RequestItemID[:]) < 0
		})

		var requestIDs []uuid.UUID
		for _, it := range poItems {
			if _, err := s.requests.FindItemForUpdate(txCtx, it.RequestItemID); err != nil {
				return lookupErr(err, "request item", it.RequestItemID.String())
			}
			ok, err := s.requests.ReleaseOrderedQuantity(txCtx, it.RequestItemID, it.Quantity)
			if err != nil {
				return fmt.Errorf("failed to release ordered quantity: %w", err)
			}
			if !ok {
				return apperror.Conflict("ordered quantity of item %q is out of step with %s", it.Name, order.PONumber)
			}
			requestIDs = append(requestIDs, it.RequestID)
		}

		order.CancelledAt = &now
		if err := s.orders.MarkCancelled(txCtx, order); err != nil {
			return fmt.Errorf("failed to cancel purchase order: %w", err)
		}

		for _, id := range sortedUnique(requestIDs) {
			req, err := s.requests.FindByIDForUpdate(txCtx, id)
			if err != nil {
				return lookupErr(err, "purchase request", id.String())
			}
			if _, err := s.requests.UpdateStatus(txCtx, id, []model.RequestStatus{model.RequestOrdered}, model.RequestApproved); err != nil {
				return fmt.Errorf("failed to reopen request: %w", err)
			}
			msg := fmt.Sprintf("%s cancelled; items returned to the procurement queue", order.PONumber)
			if err := appendHistory(txCtx, s.history, req, &actor.ID, model.HistoryOrderCancelled, msg, now); err != nil {
				return err
			}
		}

		return writeAudit(txCtx, s.audit, actor.ID, model.ActionCancelOrder, order.ID.String(), order.PONumber, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderEvent("cancelled")
	s.log.Info("purchase order cancelled", zap.String("po_number", poNumber), zap.String("reason", reason))
	return s.GetOrder(ctx, poNumber)
}

func (s *orderService) GetOrder(ctx context.Context, poNumber string) (*OrderResponse, error) {
	order, err := s.orders.FindByNumber(ctx, poNumber)
	if err != nil {
		return nil, lookupErr(err, "purchase order", poNumber)
	}
	received, err := s.receipts.ReceivedTotals(ctx, orderItemIDs(order.Items))
	if err != nil {
		return nil, fmt.Errorf("failed to sum received quantities: %w", err)
	}
	resp := toOrderResponse(*order, received)
	return &resp, nil
}

func (s *orderService) ListOrders(ctx context.Context, status string, page, limit int) ([]OrderResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	st := model.OrderStatus(strings.ToUpper(status))

	orders, total, err := s.orders.List(ctx, st, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase orders: %w", err)
	}

	var ids []uuid.UUID
	for _, o := range orders {
		ids = append(ids, orderItemIDs(o.Items)...)
	}
	received, err := s.receipts.ReceivedTotals(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to sum received quantities: %w", err)
	}

	res := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		res = append(res, toOrderResponse(o, received))
	}
	return res, total, nil
}

// RenderOrderDocument builds the printable order. A copy is kept in the
// file store when possible; failing to keep it does not fail the render.
func (s *orderService) RenderOrderDocument(ctx context.Context, poNumber string) (*RenderedDocument, error) {
	if s.renderer == nil {
		return nil, apperror.Configuration("no document renderer configured")
	}
	order, err := s.orders.FindByNumber(ctx, poNumber)
	if err != nil {
		return nil, lookupErr(err, "purchase order", poNumber)
	}

	content, err := s.renderer.Render(ctx, document.KindPurchaseOrder, order)
	if err != nil {
		metrics.CollaboratorFailed("renderer")
		return nil, fmt.Errorf("failed to render purchase order %s: %w", poNumber, err)
	}

	doc := &RenderedDocument{
		Name:        order.PONumber + ".xlsx",
		ContentType: s.renderer.ContentType(),
		Content:     content,
	}
	if s.files != nil {
		ref, err := s.files.Store(ctx, doc.Name, content)
		if err != nil {
			metrics.CollaboratorFailed("file_store")
			s.log.Warn("storing purchase order document failed", zap.String("po_number", poNumber), zap.Error(err))
		} else {
			doc.Ref = ref
		}
	}
	return doc, nil
}

// sortedUnique returns the distinct ids in byte order.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func orderItemIDs(items []model.PurchaseOrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func toOrderResponse(o model.PurchaseOrder, received map[uuid.UUID]int) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		PONumber:    o.PONumber,
		Status:      o.Status,
		VendorID:    o.VendorID,
		TotalAmount: o.TotalAmount,
		Note:        o.Note,
		CreatedBy:   o.CreatedBy,
		SentAt:      o.SentAt,
		CancelledAt: o.CancelledAt,
		Items:       make([]OrderItemResponse, 0, len(o.Items)),
		CreatedAt:   o.CreatedAt,
	}
	if o.Vendor != nil {
		resp.VendorName = o.Vendor.Name
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:            it.ID,
			LineNo:        it.LineNo,
			RequestItemID: it.RequestItemID,
			RequestID:     it.RequestID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			LineTotal:     it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
			QuotationRef:  it.QuotationRef,
			Received:      received[it.ID],
		})
	}
	return resp
}
