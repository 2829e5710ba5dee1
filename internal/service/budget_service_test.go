package service

import (
	"errors"
	"testing"

	"procurement/internal/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBudget_NoCeilingAlwaysPasses(t *testing.T) {
	f := newFixture(t)

	res, err := f.budgets.CheckBudget(f.ctx, "2026-03", decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.Nil(t, res.Ceiling)
	assert.NoError(t, res.Err())
}

func TestCheckBudget_IsDeterministic(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-03", 5000)
	f.createRequest(t, item("paper", 10, 100))

	first, err := f.budgets.CheckBudget(f.ctx, "2026-03", decimal.NewFromInt(4500))
	require.NoError(t, err)
	second, err := f.budgets.CheckBudget(f.ctx, "2026-03", decimal.NewFromInt(4500))
	require.NoError(t, err)

	assert.Equal(t, first.Pass, second.Pass)
	assert.True(t, first.Committed.Equal(second.Committed))
	assert.True(t, first.Shortfall.Equal(second.Shortfall))
	assert.False(t, first.Pass)
	assert.Equal(t, "500.00", first.Shortfall.StringFixed(2))
}

func TestCheckBudget_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.budgets.CheckBudget(f.ctx, "2026-13", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.budgets.CheckBudget(f.ctx, "2026-03", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCreateRequest_BudgetScenario(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-03", 5000)

	first := f.createRequest(t, item("chairs", 10, 100))
	assert.Equal(t, "1000.00", first.TotalAmount.StringFixed(2))

	_, err := f.requests.CreateRequest(f.ctx, actorOf(f.requester), CreateRequestDTO{
		Items: []CreateRequestItemDTO{item("desks", 9, 500)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrBudgetExceeded)

	var exceeded *apperror.BudgetExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "2026-03", exceeded.Month)
	assert.Equal(t, "1000.00", exceeded.Committed.StringFixed(2))
	assert.Equal(t, "500.00", exceeded.Shortfall().StringFixed(2))

	list, total, err := f.requests.ListRequests(f.ctx, RequestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestCheckBudget_IgnoresRejectedAndCancelled(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-03", 5000)

	first := f.createRequest(t, item("chairs", 10, 100))
	_, err := f.requests.CancelRequest(f.ctx, first.ID, actorOf(f.requester), "not needed")
	require.NoError(t, err)

	res, err := f.budgets.CheckBudget(f.ctx, "2026-03", decimal.NewFromInt(4500))
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.True(t, res.Committed.IsZero())
}

func TestCheckBudget_ScopedToMonth(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-04", 100)
	f.createRequest(t, item("chairs", 10, 100))

	res, err := f.budgets.CheckBudget(f.ctx, "2026-04", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.True(t, res.Committed.IsZero())
}

func TestGetBudgetStatus(t *testing.T) {
	f := newFixture(t)

	st, err := f.budgets.GetBudgetStatus(f.ctx, "2026-03")
	require.NoError(t, err)
	assert.True(t, st.Unlimited)
	assert.Nil(t, st.Remaining)

	f.setBudget(t, "2026-03", 5000)
	f.createRequest(t, item("chairs", 10, 100))

	st, err = f.budgets.GetBudgetStatus(f.ctx, "2026-03")
	require.NoError(t, err)
	assert.False(t, st.Unlimited)
	require.NotNil(t, st.Remaining)
	require.NotNil(t, st.Utilisation)
	assert.Equal(t, "5000.00", st.Ceiling.StringFixed(2))
	assert.Equal(t, "1000.00", st.Committed.StringFixed(2))
	assert.Equal(t, "4000.00", st.Remaining.StringFixed(2))
	assert.Equal(t, "20.00", st.Utilisation.StringFixed(2))
}

func TestSetMonthlyBudget(t *testing.T) {
	f := newFixture(t)

	_, err := f.budgets.SetMonthlyBudget(f.ctx, "March", decimal.NewFromInt(10), actorOf(f.finance))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.budgets.SetMonthlyBudget(f.ctx, "2026-03", decimal.NewFromInt(-10), actorOf(f.finance))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.budgets.SetMonthlyBudget(f.ctx, "2026-03", decimal.NewFromInt(10), Actor{})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	f.setBudget(t, "2026-03", 5000)
	st, err := f.budgets.SetMonthlyBudget(f.ctx, "2026-03", decimal.NewFromInt(7000), actorOf(f.finance))
	require.NoError(t, err)
	assert.Equal(t, "7000.00", st.Ceiling.StringFixed(2))

	logs, total, err := f.auditRepo.List(f.ctx, repositoryAuditFilter("SET_BUDGET"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)
}

func TestListBudgetStatuses(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-03", 5000)

	all, err := f.budgets.ListBudgetStatuses(f.ctx, 2026)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, "2026-01", all[0].Month)
	assert.True(t, all[0].Unlimited)
	assert.False(t, all[2].Unlimited)

	_, err = f.budgets.ListBudgetStatuses(f.ctx, 12)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
