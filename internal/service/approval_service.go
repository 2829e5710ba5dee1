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

// Approval modes.
const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// --- DTOs ---

type DecideStepRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

type ChainEntryDTO struct {
	StepName   string `json:"step_name" binding:"required"`
	ApproverID string `json:"approver_id" binding:"required"`
}

type ReplaceChainRequest struct {
	Entries []ChainEntryDTO `json:"entries" binding:"required,min=1,dive"`
}

// ChainSeed names an approver by username, the way configuration does.
type ChainSeed struct {
	Name             string
	ApproverUsername string
}

type ChainEntryResponse struct {
	Sequence     int       `json:"sequence"`
	StepName     string    `json:"step_name"`
	ApproverID   uuid.UUID `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
}

// DecisionResult reports the step after the decision and the request status
// it produced. Budget is set when the decision triggered the final check.
type DecisionResult struct {
	Step          StepResponse        `json:"step"`
	RequestID     uuid.UUID           `json:"request_id"`
	RequestNo     string              `json:"request_no"`
	RequestStatus model.RequestStatus `json:"request_status"`
	Budget        *BudgetCheckResult  `json:"budget,omitempty"`
}

type PendingStepResponse struct {
	StepResponse
	RequestID   uuid.UUID `json:"request_id"`
	RequestNo   string    `json:"request_no"`
	RequestedAt time.Time `json:"requested_at"`
}

// --- Interface ---

type ApprovalService interface {
	Decide(ctx context.Context, stepID uuid.UUID, decision model.Decision, comment string, actor Actor) (*DecisionResult, error)
	GetStep(ctx context.Context, stepID uuid.UUID) (*PendingStepResponse, error)
	ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]PendingStepResponse, error)
	GetChain(ctx context.Context) ([]ChainEntryResponse, error)
	ReplaceChain(ctx context.Context, req ReplaceChainRequest, actor Actor) ([]ChainEntryResponse, error)
	SeedChain(ctx context.Context, seeds []ChainSeed) error
}

type approvalService struct {
	tx        repository.TransactionManager
	requests  repository.RequestRepository
	approvals repository.ApprovalRepository
	history   repository.HistoryRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	budget    BudgetService
	notifier  Notifier
	mode      string
	now       Clock
	log       *zap.Logger
}

func NewApprovalService(
	tx repository.TransactionManager,
	requests repository.RequestRepository,
	approvals repository.ApprovalRepository,
	history repository.HistoryRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	budget BudgetService,
	notifier Notifier,
	mode string,
	clock Clock,
	log *zap.Logger,
) ApprovalService {
	if clock == nil {
		clock = systemClock
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if mode == "" {
		mode = ModeParallel
	}
	return &approvalService{
		tx:        tx,
		requests:  requests,
		approvals: approvals,
		history:   history,
		users:     users,
		audit:     audit,
		budget:    budget,
		notifier:  notifier,
		mode:      mode,
		now:       clock,
		log:       logger.OrNop(log),
	}
}

// --- Implementation ---

// Decide records an approver's verdict on one step. The step and its request
// are locked for the whole transaction so that concurrent decisions on the
// same request serialise and exactly one of them observes the last pending
// step.
func (s *approvalService) Decide(ctx context.Context, stepID uuid.UUID, decision model.Decision, comment string, actor Actor) (*DecisionResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if !decision.IsValid() {
		return nil, apperror.Validation("decision must be APPROVED or REJECTED")
	}

	var (
		result DecisionResult
		req    *model.PurchaseRequest
	)
	now := s.now().UTC()

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		step, err := s.approvals.FindStepForUpdate(txCtx, stepID)
		if err != nil {
			return lookupErr(err, "approval step", stepID.String())
		}
		req, err = s.requests.FindByIDForUpdate(txCtx, step.RequestID)
		if err != nil {
			return lookupErr(err, "purchase request", step.RequestID.String())
		}

		if req.Status != model.RequestPending {
			return apperror.Conflict("request %s is %s; its steps can no longer be decided", req.RequestNo, req.Status)
		}
		if step.Status != model.StepPending {
			return apperror.Conflict("step %q of %s is already %s", step.StepName, req.RequestNo, step.Status)
		}
		if step.ApproverID != actor.ID && !actor.IsAdmin() {
			return apperror.Forbidden("step %q is assigned to another approver", step.StepName)
		}
		if s.mode == ModeSequential {
			earlier, err := s.approvals.CountUndecidedBefore(txCtx, req.ID, step.Sequence)
			if err != nil {
				return fmt.Errorf("failed to check earlier steps: %w", err)
			}
			if earlier > 0 {
				return apperror.Conflict("step %q must wait for %d earlier step(s)", step.StepName, earlier)
			}
		}

		ok, err := s.approvals.DecideStep(txCtx, step.ID, decision.StepStatus(), actor.ID, comment, now)
		if err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
		if !ok {
			return apperror.Conflict("step %q of %s was decided concurrently", step.StepName, req.RequestNo)
		}
		step.Status = decision.StepStatus()
		step.DecidedBy = &actor.ID
		step.DecidedAt = &now
		step.Comment = comment

		event := model.HistoryStepApproved
		if decision == model.DecisionReject {
			event = model.HistoryStepRejected
		}
		msg := fmt.Sprintf("step %d (%s) %s", step.Sequence, step.StepName, strings.ToLower(string(step.Status)))
		if comment != "" {
			msg += ": " + comment
		}
		if err := appendHistory(txCtx, s.history, req, &actor.ID, event, msg, now); err != nil {
			return err
		}

		status := model.RequestPending
		if decision == model.DecisionReject {
			if err := s.transition(txCtx, req, model.RequestRejected); err != nil {
				return err
			}
			status = model.RequestRejected
		} else {
			pending, err := s.approvals.CountPending(txCtx, req.ID)
			if err != nil {
				return fmt.Errorf("failed to count pending steps: %w", err)
			}
			if pending == 0 {
				status, result.Budget, err = s.finalise(txCtx, req, now)
				if err != nil {
					return err
				}
			}
		}

		result.Step = toStepResponse(*step)
		result.RequestID = req.ID
		result.RequestNo = req.RequestNo
		result.RequestStatus = status

		action := model.ActionApproveStep
		if decision == model.DecisionReject {
			action = model.ActionRejectStep
		}
		return writeAudit(txCtx, s.audit, actor.ID, action, step.ID.String(), req.RequestNo, map[string]any{
			"step":           step.StepName,
			"sequence":       step.Sequence,
			"request_status": status,
			"comment":        comment,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.DecisionRecorded(string(decision))
	if result.Budget != nil {
		metrics.BudgetChecked("final", result.Budget.Pass)
	}
	s.log.Info("approval step decided",
		zap.String("request_no", result.RequestNo),
		zap.String("step", result.Step.StepName),
		zap.String("decision", string(decision)),
		zap.String("request_status", string(result.RequestStatus)))

	s.announce(ctx, req, result)
	return &result, nil
}

// finalise runs the budget gate once every step is approved.
func (s *approvalService) finalise(ctx context.Context, req *model.PurchaseRequest, now time.Time) (model.RequestStatus, *BudgetCheckResult, error) {
	if err := s.tx.LockKey(ctx, budgetLockKey(model.MonthOf(req.CreatedAt))); err != nil {
		return "", nil, err
	}
	check, err := s.budget.CheckRequestBudget(ctx, req)
	if err != nil {
		return "", nil, err
	}

	if check.Pass {
		if err := s.transition(ctx, req, model.RequestApproved); err != nil {
			return "", nil, err
		}
		msg := fmt.Sprintf("all steps approved; budget check passed for %s", check.Month)
		if err := appendHistory(ctx, s.history, req, nil, model.HistoryBudgetApproved, msg, now); err != nil {
			return "", nil, err
		}
		return model.RequestApproved, &check, nil
	}

	if err := s.transition(ctx, req, model.RequestRejected); err != nil {
		return "", nil, err
	}
	shortfall := check.Shortfall
	msg := fmt.Sprintf("budget exceeded for %s: amount %s, committed %s, ceiling %s, short by %s",
		check.Month, check.Requested.StringFixed(2), check.Committed.StringFixed(2),
		check.Ceiling.StringFixed(2), shortfall.StringFixed(2))
	if err := appendHistory(ctx, s.history, req, nil, model.HistoryBudgetRejected, msg, now); err != nil {
		return "", nil, err
	}
	return model.RequestRejected, &check, nil
}

func (s *approvalService) transition(ctx context.Context, req *model.PurchaseRequest, to model.RequestStatus) error {
	ok, err := s.requests.UpdateStatus(ctx, req.ID, []model.RequestStatus{model.RequestPending}, to)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if !ok {
		return apperror.Conflict("request %s is no longer pending", req.RequestNo)
	}
	req.Status = to
	return nil
}

func (s *approvalService) announce(ctx context.Context, req *model.PurchaseRequest, res DecisionResult) {
	data := map[string]any{
		"request_id":     res.RequestID,
		"request_no":     res.RequestNo,
		"step":           res.Step.StepName,
		"decision":       res.Step.Status,
		"request_status": res.RequestStatus,
	}

	switch res.RequestStatus {
	case model.RequestApproved:
		notifyQuietly(ctx, s.notifier, s.log, req.RequesterID, notify.TemplateRequestApproved, data)
		purchasers, err := s.users.ListByRole(ctx, model.RolePurchaser)
		if err != nil {
			s.log.Warn("loading purchasers failed", zap.Error(err))
			return
		}
		for _, p := range purchasers {
			notifyQuietly(ctx, s.notifier, s.log, p.ID, notify.TemplateReadyToOrder, data)
		}
	case model.RequestRejected:
		if res.Budget != nil {
			data["shortfall"] = res.Budget.Shortfall.StringFixed(2)
		}
		notifyQuietly(ctx, s.notifier, s.log, req.RequesterID, notify.TemplateRequestRejected, data)
	default:
		notifyQuietly(ctx, s.notifier, s.log, req.RequesterID, notify.TemplateStepDecided, data)
	}
}

func (s *approvalService) GetStep(ctx context.Context, stepID uuid.UUID) (*PendingStepResponse, error) {
	step, err := s.approvals.FindStepByID(ctx, stepID)
	if err != nil {
		return nil, lookupErr(err, "approval step", stepID.String())
	}
	req, err := s.requests.FindByID(ctx, step.RequestID)
	if err != nil {
		return nil, lookupErr(err, "purchase request", step.RequestID.String())
	}
	return &PendingStepResponse{
		StepResponse: toStepResponse(*step),
		RequestID:    req.ID,
		RequestNo:    req.RequestNo,
		RequestedAt:  req.CreatedAt,
	}, nil
}

func (s *approvalService) ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]PendingStepResponse, error) {
	steps, err := s.approvals.ListPendingForApprover(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending steps: %w", err)
	}

	res := make([]PendingStepResponse, 0, len(steps))
	for _, st := range steps {
		req, err := s.requests.FindByID(ctx, st.RequestID)
		if err != nil {
			return nil, lookupErr(err, "purchase request", st.RequestID.String())
		}
		res = append(res, PendingStepResponse{
			StepResponse: toStepResponse(st),
			RequestID:    req.ID,
			RequestNo:    req.RequestNo,
			RequestedAt:  req.CreatedAt,
		})
	}
	return res, nil
}

func (s *approvalService) GetChain(ctx context.Context) ([]ChainEntryResponse, error) {
	chain, err := s.approvals.ListChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval chain: %w", err)
	}
	return toChainResponse(chain), nil
}

// ReplaceChain swaps the configured chain. Requests already created keep
// the steps they were given.
func (s *approvalService) ReplaceChain(ctx context.Context, req ReplaceChainRequest, actor Actor) ([]ChainEntryResponse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("only administrators may change the approval chain")
	}
	if len(req.Entries) == 0 {
		return nil, apperror.Validation("approval chain must have at least one step")
	}

	entries := make([]model.ApprovalChainEntry, 0, len(req.Entries))
	for i, e := range req.Entries {
		name := strings.TrimSpace(e.StepName)
		if name == "" {
			return nil, apperror.Validation("step %d: name is required", i+1)
		}
		id, err := parseID(e.ApproverID, "approver_id")
		if err != nil {
			return nil, err
		}
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, lookupErr(err, "user", id.String())
		}
		entries = append(entries, model.ApprovalChainEntry{Sequence: i + 1, StepName: name, ApproverID: id})
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.approvals.ReplaceChain(txCtx, entries); err != nil {
			return fmt.Errorf("failed to replace approval chain: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.StepName)
		}
		return writeAudit(txCtx, s.audit, actor.ID, model.ActionReplaceChain, "", "approval_chain", map[string]any{
			"steps": names,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetChain(ctx)
}

// SeedChain installs the configured chain when none exists yet.
func (s *approvalService) SeedChain(ctx context.Context, seeds []ChainSeed) error {
	existing, err := s.approvals.ListChain(ctx)
	if err != nil {
		return fmt.Errorf("failed to load approval chain: %w", err)
	}
	if len(existing) > 0 {
		s.log.Info("approval chain already present, skipping seed", zap.Int("steps", len(existing)))
		return nil
	}
	if len(seeds) == 0 {
		return apperror.Configuration("no approval chain configured to seed")
	}

	usernames := make([]string, 0, len(seeds))
	for _, sd := range seeds {
		usernames = append(usernames, sd.ApproverUsername)
	}
	users, err := s.users.GetByUsernames(ctx, usernames)
	if err != nil {
		return fmt.Errorf("failed to load approvers: %w", err)
	}
	byName := make(map[string]uuid.UUID, len(users))
	for _, u := range users {
		byName[u.Username] = u.ID
	}

	entries := make([]model.ApprovalChainEntry, 0, len(seeds))
	for i, sd := range seeds {
		id, ok := byName[sd.ApproverUsername]
		if !ok {
			return apperror.Configuration("approver %q for step %q does not exist", sd.ApproverUsername, sd.Name)
		}
		entries = append(entries, model.ApprovalChainEntry{Sequence: i + 1, StepName: sd.Name, ApproverID: id})
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.approvals.ReplaceChain(txCtx, entries)
	})
	if err != nil {
		return fmt.Errorf("failed to seed approval chain: %w", err)
	}
	s.log.Info("approval chain seeded", zap.Int("steps", len(entries)))
	return nil
}

func toChainResponse(chain []model.ApprovalChainEntry) []ChainEntryResponse {
	res := make([]ChainEntryResponse, 0, len(chain))
	for _, e := range chain {
		r := ChainEntryResponse{Sequence: e.Sequence, StepName: e.StepName, ApproverID: e.ApproverID}
		if e.Approver != nil {
			r.ApproverName = e.Approver.Username
		}
		res = append(res, r)
	}
	return res
}
