package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"procurement/internal/apperror"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestItemDTO struct {
	Name          string          `json:"name" binding:"required"`
	Detail        string          `json:"detail"`
	Quantity      int             `json:"quantity" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	CatalogItemID string          `json:"catalog_item_id"`
}

type CreateRequestDTO struct {
	Title    string                 `json:"title"`
	Category string                 `json:"category"`
	DueDate  *time.Time             `json:"due_date"`
	Items    []CreateRequestItemDTO `json:"items" binding:"required,min=1,dive"`
}

type CancelRequestDTO struct {
	Reason string `json:"reason"`
}

type RequestFilter struct {
	Status      string
	RequesterID string
	Month       string
	Page        int
	Limit       int
}

type RequestItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	LineNo          int             `json:"line_no"`
	Name            string          `json:"name"`
	Detail          string          `json:"detail"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
	QuantityOrdered int             `json:"quantity_ordered"`
	CatalogItemID   *uuid.UUID      `json:"catalog_item_id"`
	ImageRef        string          `json:"image_ref"`
}

// ItemImage is a stored item picture.
type ItemImage struct {
	Name    string
	Content []byte
}

type StepResponse struct {
	ID           uuid.UUID        `json:"id"`
	Sequence     int              `json:"sequence"`
	StepName     string           `json:"step_name"`
	ApproverID   uuid.UUID        `json:"approver_id"`
	ApproverName string           `json:"approver_name"`
	Status       model.StepStatus `json:"status"`
	DecidedAt    *time.Time       `json:"decided_at"`
	Comment      string           `json:"comment"`
}

type RequestResponse struct {
	ID            uuid.UUID             `json:"id"`
	RequestNo     string                `json:"request_no"`
	RequesterID   uuid.UUID             `json:"requester_id"`
	RequesterName string                `json:"requester_name"`
	Category      model.Category        `json:"category"`
	Title         string                `json:"title"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	Status        model.RequestStatus   `json:"status"`
	DisplayStatus model.RequestStatus   `json:"display_status"`
	DueDate       *time.Time            `json:"due_date"`
	Items         []RequestItemResponse `json:"items"`
	Steps         []StepResponse        `json:"steps"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, actor Actor, req CreateRequestDTO) (*RequestResponse, error)
	DeleteRequest(ctx context.Context, id uuid.UUID, actor Actor) error
	CancelRequest(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*RequestResponse, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*RequestResponse, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]model.RequestHistory, error)
	ListSteps(ctx context.Context, id uuid.UUID) ([]StepResponse, error)
	AttachItemImage(ctx context.Context, requestID, itemID uuid.UUID, actor Actor, filename string, content []byte) (*RequestItemResponse, error)
	GetItemImage(ctx context.Context, requestID, itemID uuid.UUID) (*ItemImage, error)
}

// RequestOptions tunes request creation.
type RequestOptions struct {
	PrecheckBudget bool
}

type requestService struct {
	tx        repository.TransactionManager
	requests  repository.RequestRepository
	approvals repository.ApprovalRepository
	orders    repository.OrderRepository
	history   repository.HistoryRepository
	sequences repository.SequenceRepository
	catalog   repository.CatalogRepository
	audit     repository.AuditRepository
	budget    BudgetService
	files     FileStore
	opts      RequestOptions
	now       Clock
	log       *zap.Logger
}

func NewRequestService(
	tx repository.TransactionManager,
	requests repository.RequestRepository,
	approvals repository.ApprovalRepository,
	orders repository.OrderRepository,
	history repository.HistoryRepository,
	sequences repository.SequenceRepository,
	catalog repository.CatalogRepository,
	audit repository.AuditRepository,
	budget BudgetService,
	files FileStore,
	opts RequestOptions,
	clock Clock,
	log *zap.Logger,
) RequestService {
	if clock == nil {
		clock = systemClock
	}
	return &requestService{
		tx:        tx,
		requests:  requests,
		approvals: approvals,
		orders:    orders,
		history:   history,
		sequences: sequences,
		catalog:   catalog,
		audit:     audit,
		budget:    budget,
		files:     files,
		opts:      opts,
		now:       clock,
		log:       logger.OrNop(log),
	}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, actor Actor, dto CreateRequestDTO) (*RequestResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	category := model.Category(strings.ToUpper(strings.TrimSpace(dto.Category)))
	if category == "" {
		category = model.CategoryNormal
	}
	if !category.IsValid() {
		return nil, apperror.Validation("unknown category %q", dto.Category)
	}

	items, total, err := s.buildItems(ctx, dto.Items)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	month := model.MonthOf(now)
	req := model.PurchaseRequest{
		RequesterID: actor.ID,
		Category:    category,
		Title:       strings.TrimSpace(dto.Title),
		TotalAmount: total,
		Status:      model.RequestPending,
		DueDate:     dto.DueDate,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		chain, err := s.approvals.ListChain(txCtx)
		if err != nil {
			return fmt.Errorf("failed to load approval chain: %w", err)
		}
		if len(chain) == 0 {
			return apperror.Configuration("no approval chain is configured")
		}

		if s.opts.PrecheckBudget {
			if err := s.tx.LockKey(txCtx, budgetLockKey(month)); err != nil {
				return err
			}
			res, err := s.budget.CheckBudget(txCtx, month, total)
			if err != nil {
				return err
			}
			metrics.BudgetChecked("create", res.Pass)
			if err := res.Err(); err != nil {
				return err
			}
		}

		n, err := s.sequences.Next(txCtx, requestPrefix, month)
		if err != nil {
			return err
		}
		req.RequestNo = documentNumber(requestPrefix, month, n)

		if err := s.requests.Create(txCtx, &req); err != nil {
			return fmt.Errorf("failed to create purchase request: %w", err)
		}

		steps := make([]model.ApprovalStep, 0, len(chain))
		for _, entry := range chain {
			steps = append(steps, model.ApprovalStep{
				RequestID:  req.ID,
				Sequence:   entry.Sequence,
				StepName:   entry.StepName,
				ApproverID: entry.ApproverID,
				Status:     model.StepPending,
				CreatedAt:  now,
			})
		}
		if err := s.approvals.CreateSteps(txCtx, steps); err != nil {
			return fmt.Errorf("failed to create approval steps: %w", err)
		}

		msg := fmt.Sprintf("request created with %d item(s), total %s", len(items), total.StringFixed(2))
		if err := appendHistory(txCtx, s.history, &req, &actor.ID, model.HistoryCreated, msg, now); err != nil {
			return err
		}
		return writeAudit(txCtx, s.audit, actor.ID, model.ActionCreateRequest, req.ID.String(), req.RequestNo, map[string]any{
			"category": category,
			"total":    total.StringFixed(2),
			"items":    len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestCreated(string(category))
	s.log.Info("purchase request created",
		zap.String("request_no", req.RequestNo),
		zap.String("requester_id", actor.ID.String()),
		zap.String("total", total.StringFixed(2)))

	return s.GetRequest(ctx, req.ID)
}

// buildItems validates item input and computes the request total.
func (s *requestService) buildItems(ctx context.Context, in []CreateRequestItemDTO) ([]model.RequestItem, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, apperror.Validation("a request needs at least one item")
	}

	items := make([]model.RequestItem, 0, len(in))
	total := decimal.Zero
	for i, it := range in {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, decimal.Zero, apperror.Validation("item %d: name is required", i+1)
		}
		if it.Quantity <= 0 {
			return nil, decimal.Zero, apperror.Validation("item %d: quantity must be greater than 0", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return nil, decimal.Zero, apperror.Validation("item %d: unit price must not be negative", i+1)
		}

		item := model.RequestItem{
			LineNo:    i + 1,
			Name:      name,
			Detail:    strings.TrimSpace(it.Detail),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
		if it.CatalogItemID != "" {
			id, err := parseID(it.CatalogItemID, "catalog_item_id")
			if err != nil {
				return nil, decimal.Zero, err
			}
			if _, err := s.catalog.FindByID(ctx, id); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, decimal.Zero, apperror.Validation("item %d: catalog item %s does not exist", i+1, id)
				}
				return nil, decimal.Zero, fmt.Errorf("failed to load catalog item: %w", err)
			}
			item.CatalogItemID = &id
		}

		total = total.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, total, nil
}

func (s *requestService) DeleteRequest(ctx context.Context, id uuid.UUID, actor Actor) error {
	if err := actor.validate(); err != nil {
		return err
	}
	if !actor.IsPrivileged() {
		return apperror.Forbidden("only managers and administrators may delete requests")
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "purchase request", id.String())
		}

		// Cancelled orders keep their lines, so any reference blocks the delete.
		lines, err := s.orders.CountItemsByRequest(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to check purchase orders: %w", err)
		}
		if lines > 0 {
			return apperror.Conflict("request %s is referenced by purchase orders and cannot be deleted", req.RequestNo)
		}

		if err := s.requests.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete purchase request: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor.ID, model.ActionDeleteRequest, req.ID.String(), req.RequestNo, map[string]any{
			"status": req.Status,
			"total":  req.TotalAmount.StringFixed(2),
		})
	})
}

// CancelRequest withdraws a request that has nothing on order yet.
func (s *requestService) CancelRequest(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*RequestResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "purchase request", id.String())
		}
		if req.RequesterID != actor.ID && !actor.IsPrivileged() {
			return apperror.Forbidden("only the requester or a manager may cancel request %s", req.RequestNo)
		}

		cancellable := []model.RequestStatus{model.RequestPending, model.RequestApproved, model.RequestAwaitingQuotation}
		items, err := s.requests.ListItems(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load request items: %w", err)
		}
		for _, it := range items {
			if it.QuantityOrdered > 0 {
				return apperror.Conflict("request %s already has items on order", req.RequestNo)
			}
		}

		ok, err := s.requests.UpdateStatus(txCtx, id, cancellable, model.RequestCancelled)
		if err != nil {
			return fmt.Errorf("failed to cancel request: %w", err)
		}
		if !ok {
			return apperror.Conflict("request %s is %s and cannot be cancelled", req.RequestNo, req.Status)
		}

		now := s.now().UTC()
		msg := "request cancelled"
		if reason != "" {
			msg += ": " + reason
		}
		if err := appendHistory(txCtx, s.history, req, &actor.ID, model.HistoryCancelled, msg, now); err != nil {
			return err
		}
		return writeAudit(txCtx, s.audit, actor.ID, model.ActionCancelRequest, req.ID.String(), req.RequestNo, map[string]any{
			"previous_status": req.Status,
			"reason":          reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(ctx, id)
}

func (s *requestService) GetRequest(ctx context.Context, id uuid.UUID) (*RequestResponse, error) {
	req, err := s.requests.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "purchase request", id.String())
	}
	resp := toRequestResponse(*req)
	return &resp, nil
}

func (s *requestService) ListRequests(ctx context.Context, f RequestFilter) ([]RequestResponse, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}

	filter := repository.RequestFilter{Page: f.Page, Limit: f.Limit}
	if f.Status != "" {
		st := model.RequestStatus(strings.ToUpper(f.Status))
		if !st.IsValid() {
			return nil, 0, apperror.Validation("unknown status %q", f.Status)
		}
		filter.Status = st
	}
	if f.RequesterID != "" {
		id, err := parseID(f.RequesterID, "requester_id")
		if err != nil {
			return nil, 0, err
		}
		filter.RequesterID = &id
	}
	if f.Month != "" {
		start, end, err := model.MonthRange(f.Month)
		if err != nil {
			return nil, 0, apperror.Validation("%s", err.Error())
		}
		filter.From, filter.To = start, end
	}

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase requests: %w", err)
	}

	res := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		res = append(res, toRequestResponse(r))
	}
	return res, total, nil
}

func (s *requestService) GetHistory(ctx context.Context, id uuid.UUID) ([]model.RequestHistory, error) {
	if _, err := s.requests.FindByID(ctx, id); err != nil {
		return nil, lookupErr(err, "purchase request", id.String())
	}
	entries, err := s.history.ListByRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request history: %w", err)
	}
	return entries, nil
}

// ListSteps returns the approval steps of a request in chain order.
func (s *requestService) ListSteps(ctx context.Context, id uuid.UUID) ([]StepResponse, error) {
	if _, err := s.requests.FindByID(ctx, id); err != nil {
		return nil, lookupErr(err, "purchase request", id.String())
	}
	steps, err := s.approvals.ListSteps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval steps: %w", err)
	}
	out := make([]StepResponse, 0, len(steps))
	for _, st := range steps {
		out = append(out, toStepResponse(st))
	}
	return out, nil
}

// AttachItemImage stores an image for a request item. The file is written
// before the reference is saved; a failed save leaves an orphaned file.
func (s *requestService) AttachItemImage(ctx context.Context, requestID, itemID uuid.UUID, actor Actor, filename string, content []byte) (*RequestItemResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, apperror.Validation("image is empty")
	}

	req, err := s.requests.FindByIDWithDetails(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "purchase request", requestID.String())
	}
	if req.RequesterID != actor.ID && !actor.IsPrivileged() {
		return nil, apperror.Forbidden("only the requester may attach images to request %s", req.RequestNo)
	}

	var item *model.RequestItem
	for i := range req.Items {
		if req.Items[i].ID == itemID {
			item = &req.Items[i]
		}
	}
	if item == nil {
		return nil, apperror.NotFound("request item", itemID.String())
	}

	ref, err := s.files.Store(ctx, filename, content)
	if err != nil {
		metrics.CollaboratorFailed("file_store")
		s.log.Warn("storing item image failed",
			zap.String("request_no", req.RequestNo),
			zap.String("item_id", itemID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.SetItemImage(txCtx, itemID, ref); err != nil {
			return fmt.Errorf("failed to save image reference: %w", err)
		}
		return appendHistory(txCtx, s.history, req, &actor.ID, model.HistoryImageAttached,
			fmt.Sprintf("image attached to %s", item.Name), s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	item.ImageRef = ref
	resp := toItemResponse(*item)
	return &resp, nil
}

func (s *requestService) GetItemImage(ctx context.Context, requestID, itemID uuid.UUID) (*ItemImage, error) {
	req, err := s.requests.FindByIDWithDetails(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "purchase request", requestID.String())
	}
	var ref string
	found := false
	for _, it := range req.Items {
		if it.ID == itemID {
			ref, found = it.ImageRef, true
		}
	}
	if !found {
		return nil, apperror.NotFound("request item", itemID.String())
	}
	if ref == "" {
		return nil, apperror.NotFound("item image", itemID.String())
	}

	content, err := s.files.Open(ctx, ref)
	if err != nil {
		metrics.CollaboratorFailed("file_store")
		s.log.Warn("reading item image failed",
			zap.String("request_no", req.RequestNo),
			zap.String("ref", ref),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &ItemImage{Name: path.Base(ref), Content: content}, nil
}

func toItemResponse(it model.RequestItem) RequestItemResponse {
	return RequestItemResponse{
		ID:              it.ID,
		LineNo:          it.LineNo,
		Name:            it.Name,
		Detail:          it.Detail,
		Quantity:        it.Quantity,
		UnitPrice:       it.UnitPrice,
		LineTotal:       it.LineTotal(),
		QuantityOrdered: it.QuantityOrdered,
		CatalogItemID:   it.CatalogItemID,
		ImageRef:        it.ImageRef,
	}
}

func toStepResponse(st model.ApprovalStep) StepResponse {
	resp := StepResponse{
		ID:         st.ID,
		Sequence:   st.Sequence,
		StepName:   st.StepName,
		ApproverID: st.ApproverID,
		Status:     st.Status,
		DecidedAt:  st.DecidedAt,
		Comment:    st.Comment,
	}
	if st.Approver != nil {
		resp.ApproverName = st.Approver.Username
	}
	return resp
}

func toRequestResponse(r model.PurchaseRequest) RequestResponse {
	resp := RequestResponse{
		ID:            r.ID,
		RequestNo:     r.RequestNo,
		RequesterID:   r.RequesterID,
		Category:      r.Category,
		Title:         r.Title,
		TotalAmount:   r.TotalAmount,
		Status:        r.Status,
		DisplayStatus: model.DisplayStatus(r.Status, r.Steps),
		DueDate:       r.DueDate,
		Items:         make([]RequestItemResponse, 0, len(r.Items)),
		Steps:         make([]StepResponse, 0, len(r.Steps)),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Requester != nil {
		resp.RequesterName = r.Requester.Username
	}
	for _, it := range r.Items {
		resp.Items = append(resp.Items, toItemResponse(it))
	}
	for _, st := range r.Steps {
		resp.Steps = append(resp.Steps, toStepResponse(st))
	}
	return resp
}
