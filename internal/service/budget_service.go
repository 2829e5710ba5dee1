package service

import (
	"context"
	"errors"
	"fmt"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type SetBudgetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BudgetCheckResult is the outcome of comparing a candidate amount with a
// month's ceiling. Ceiling is nil when the month has no budget.
type BudgetCheckResult struct {
	Month     string           `json:"month"`
	Ceiling   *decimal.Decimal `json:"ceiling"`
	Committed decimal.Decimal  `json:"committed"`
	Requested decimal.Decimal  `json:"requested"`
	Pass      bool             `json:"pass"`
	Shortfall decimal.Decimal  `json:"shortfall"`
}

// Err returns a BudgetExceededError for a failed check and nil otherwise.
func (r BudgetCheckResult) Err() error {
	if r.Pass || r.Ceiling == nil {
		return nil
	}
	return &apperror.BudgetExceededError{
		Month:     r.Month,
		Ceiling:   *r.Ceiling,
		Committed: r.Committed,
		Requested: r.Requested,
	}
}

type BudgetStatus struct {
	Month       string           `json:"month"`
	Ceiling     *decimal.Decimal `json:"ceiling"`
	Committed   decimal.Decimal  `json:"committed"`
	Remaining   *decimal.Decimal `json:"remaining"`
	Utilisation *decimal.Decimal `json:"utilisation_percent"`
	Unlimited   bool             `json:"unlimited"`
}

// --- Interface ---

type BudgetService interface {
	CheckBudget(ctx context.Context, month string, amount decimal.Decimal) (BudgetCheckResult, error)
	CheckRequestBudget(ctx context.Context, req *model.PurchaseRequest) (BudgetCheckResult, error)
	SetMonthlyBudget(ctx context.Context, month string, amount decimal.Decimal, actor Actor) (*BudgetStatus, error)
	GetBudgetStatus(ctx context.Context, month string) (*BudgetStatus, error)
	ListBudgetStatuses(ctx context.Context, year int) ([]BudgetStatus, error)
}

type budgetService struct {
	tx       repository.TransactionManager
	budgets  repository.BudgetRepository
	requests repository.RequestRepository
	audit    repository.AuditRepository
}

func NewBudgetService(
	tx repository.TransactionManager,
	budgets repository.BudgetRepository,
	requests repository.RequestRepository,
	audit repository.AuditRepository,
) BudgetService {
	return &budgetService{tx: tx, budgets: budgets, requests: requests, audit: audit}
}

// --- Implementation ---

// CheckBudget compares committed spend plus amount against the month's
// ceiling. It only reads, so repeated calls without writes in between agree.
func (s *budgetService) CheckBudget(ctx context.Context, month string, amount decimal.Decimal) (BudgetCheckResult, error) {
	return s.check(ctx, month, amount, nil)
}

// CheckRequestBudget runs the final gate for a fully approved request. The
// request's own total is the candidate, so it is left out of committed spend.
func (s *budgetService) CheckRequestBudget(ctx context.Context, req *model.PurchaseRequest) (BudgetCheckResult, error) {
	return s.check(ctx, model.MonthOf(req.CreatedAt), req.TotalAmount, &req.ID)
}

func (s *budgetService) check(ctx context.Context, month string, amount decimal.Decimal, exclude *uuid.UUID) (BudgetCheckResult, error) {
	start, end, err := model.MonthRange(month)
	if err != nil {
		return BudgetCheckResult{}, apperror.Validation("%s", err.Error())
	}
	if amount.IsNegative() {
		return BudgetCheckResult{}, apperror.Validation("amount must not be negative")
	}

	ceiling, err := s.ceiling(ctx, month)
	if err != nil {
		return BudgetCheckResult{}, err
	}
	committed, err := s.requests.SumCommitted(ctx, start, end, exclude)
	if err != nil {
		return BudgetCheckResult{}, fmt.Errorf("failed to sum committed spend for %s: %w", month, err)
	}

	res := BudgetCheckResult{
		Month:     month,
		Ceiling:   ceiling,
		Committed: committed,
		Requested: amount,
		Pass:      true,
		Shortfall: decimal.Zero,
	}
	if ceiling != nil {
		projected := committed.Add(amount)
		if projected.GreaterThan(*ceiling) {
			res.Pass = false
			res.Shortfall = projected.Sub(*ceiling)
		}
	}
	return res, nil
}

func (s *budgetService) ceiling(ctx context.Context, month string) (*decimal.Decimal, error) {
	b, err := s.budgets.FindByMonth(ctx, month)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget for %s: %w", month, err)
	}
	return &b.Amount, nil
}

func (s *budgetService) SetMonthlyBudget(ctx context.Context, month string, amount decimal.Decimal, actor Actor) (*BudgetStatus, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if _, _, err := model.MonthRange(month); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if amount.IsNegative() {
		return nil, apperror.Validation("budget amount must not be negative")
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tx.LockKey(txCtx, budgetLockKey(month)); err != nil {
			return err
		}
		b := model.MonthlyBudget{Month: month, Amount: amount, UpdatedBy: &actor.ID}
		if err := s.budgets.Upsert(txCtx, &b); err != nil {
			return fmt.Errorf("failed to save budget for %s: %w", month, err)
		}
		return writeAudit(txCtx, s.audit, actor.ID, model.ActionSetBudget, month, "monthly budget", map[string]any{
			"month":  month,
			"amount": amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetBudgetStatus(ctx, month)
}

func (s *budgetService) GetBudgetStatus(ctx context.Context, month string) (*BudgetStatus, error) {
	res, err := s.check(ctx, month, decimal.Zero, nil)
	if err != nil {
		return nil, err
	}
	st := toBudgetStatus(res)
	return &st, nil
}

// ListBudgetStatuses reports all twelve months of year.
func (s *budgetService) ListBudgetStatuses(ctx context.Context, year int) ([]BudgetStatus, error) {
	if year < 2000 || year > 9999 {
		return nil, apperror.Validation("invalid year %d", year)
	}
	out := make([]BudgetStatus, 0, 12)
	for m := 1; m <= 12; m++ {
		st, err := s.GetBudgetStatus(ctx, fmt.Sprintf("%04d-%02d", year, m))
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

func toBudgetStatus(res BudgetCheckResult) BudgetStatus {
	st := BudgetStatus{
		Month:     res.Month,
		Ceiling:   res.Ceiling,
		Committed: res.Committed,
		Unlimited: res.Ceiling == nil,
	}
	if res.Ceiling != nil {
		st.Remaining = ptr(res.Ceiling.Sub(res.Committed))
		if res.Ceiling.IsPositive() {
			st.Utilisation = ptr(res.Committed.Div(*res.Ceiling).Mul(decimal.NewFromInt(100)).Round(2))
		}
	}
	return st
}
