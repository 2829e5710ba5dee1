package service

import (
	"sync"
	"testing"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_ApproveThenReject(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))
	first, second := req.Steps[0], req.Steps[1]

	res, err := f.approvals.Decide(f.ctx, first.ID, model.DecisionApprove, "fine", actorOf(f.manager))
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, res.RequestStatus)
	assert.Nil(t, res.Budget)
	assert.Equal(t, model.StepApproved, res.Step.Status)

	loaded := f.reload(t, req.ID)
	assert.Equal(t, model.RequestPending, loaded.Status)
	assert.Equal(t, model.RequestApproving, loaded.DisplayStatus)

	res, err = f.approvals.Decide(f.ctx, second.ID, model.DecisionReject, "too expensive", actorOf(f.finance))
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, res.RequestStatus)

	loaded = f.reload(t, req.ID)
	assert.Equal(t, model.RequestRejected, loaded.Status)
	assert.Equal(t, model.StepApproved, loaded.Steps[0].Status)
	assert.Equal(t, model.StepRejected, loaded.Steps[1].Status)
	assert.Equal(t, "too expensive", loaded.Steps[1].Comment)
	require.NotNil(t, loaded.Steps[1].DecidedAt)

	events := f.historyEvents(t, req.ID)
	assert.Equal(t, 1, events[model.HistoryStepApproved])
	assert.Equal(t, 1, events[model.HistoryStepRejected])

	assert.Equal(t, []string{notify.TemplateStepDecided, notify.TemplateRequestRejected}, f.notifier.to(f.requester.ID))
}

func TestDecide_RejectLeavesSiblingsPending(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))

	res, err := f.approvals.Decide(f.ctx, req.Steps[0].ID, model.DecisionReject, "", actorOf(f.manager))
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, res.RequestStatus)

	loaded := f.reload(t, req.ID)
	assert.Equal(t, model.StepPending, loaded.Steps[1].Status)

	_, err = f.approvals.Decide(f.ctx, req.Steps[1].ID, model.DecisionApprove, "", actorOf(f.finance))
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, model.StepPending, f.reload(t, req.ID).Steps[1].Status)
}

func TestDecide_AllApprovedPassesBudget(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-03", 5000)
	req := f.createRequest(t, item("chairs", 10, 100))

	res := f.approveAll(t, req)
	assert.Equal(t, model.RequestApproved, res.RequestStatus)
	require.NotNil(t, res.Budget)
	assert.True(t, res.Budget.Pass)
	assert.Equal(t, "0.00", res.Budget.Committed.StringFixed(2))

	assert.Equal(t, model.RequestApproved, f.reload(t, req.ID).Status)
	assert.Equal(t, 1, f.historyEvents(t, req.ID)[model.HistoryBudgetApproved])

	assert.Contains(t, f.notifier.to(f.requester.ID), notify.TemplateRequestApproved)
	assert.Equal(t, []string{notify.TemplateReadyToOrder}, f.notifier.to(f.purchaser.ID))
}

func TestDecide_FinalBudgetFailureRejects(t *testing.T) {
	f := newFixture(t)
	f.setBudget(t, "2026-03", 5000)
	req := f.createRequest(t, item("chairs", 10, 300))
	f.createRequest(t, item("desks", 1, 1500))

	// the ceiling drops after both requests passed their pre-check
	f.setBudget(t, "2026-03", 4000)

	res := f.approveAll(t, req)
	assert.Equal(t, model.RequestRejected, res.RequestStatus)
	require.NotNil(t, res.Budget)
	assert.False(t, res.Budget.Pass)
	assert.Equal(t, "1500.00", res.Budget.Committed.StringFixed(2))
	assert.Equal(t, "500.00", res.Budget.Shortfall.StringFixed(2))

	loaded := f.reload(t, req.ID)
	assert.Equal(t, model.RequestRejected, loaded.Status)
	for _, st := range loaded.Steps {
		assert.Equal(t, model.StepApproved, st.Status)
	}
	assert.Equal(t, 1, f.historyEvents(t, req.ID)[model.HistoryBudgetRejected])
	assert.Empty(t, f.notifier.to(f.purchaser.ID))
}

func TestDecide_NApprovalsRequired(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))

	res, err := f.approvals.Decide(f.ctx, req.Steps[1].ID, model.DecisionApprove, "", actorOf(f.finance))
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, res.RequestStatus)

	res, err = f.approvals.Decide(f.ctx, req.Steps[0].ID, model.DecisionApprove, "", actorOf(f.manager))
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, res.RequestStatus)
}

func TestDecide_TwiceIsConflict(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))
	step := req.Steps[0]

	_, err := f.approvals.Decide(f.ctx, step.ID, model.DecisionApprove, "first", actorOf(f.manager))
	require.NoError(t, err)

	_, err = f.approvals.Decide(f.ctx, step.ID, model.DecisionReject, "second", actorOf(f.manager))
	assert.ErrorIs(t, err, apperror.ErrConflict)

	loaded := f.reload(t, req.ID)
	assert.Equal(t, model.StepApproved, loaded.Steps[0].Status)
	assert.Equal(t, "first", loaded.Steps[0].Comment)
	assert.Equal(t, model.RequestPending, loaded.Status)
}

func TestDecide_Authorisation(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))

	_, err := f.approvals.Decide(f.ctx, req.Steps[0].ID, model.DecisionApprove, "", actorOf(f.finance))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	res, err := f.approvals.Decide(f.ctx, req.Steps[0].ID, model.DecisionApprove, "on behalf", actorOf(f.admin))
	require.NoError(t, err)
	assert.Equal(t, model.StepApproved, res.Step.Status)
}

func TestDecide_InvalidInput(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))

	_, err := f.approvals.Decide(f.ctx, req.Steps[0].ID, model.Decision("MAYBE"), "", actorOf(f.manager))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.approvals.Decide(f.ctx, uuid.New(), model.DecisionApprove, "", actorOf(f.manager))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDecide_SequentialMode(t *testing.T) {
	f := newFixture(t, withMode(ModeSequential))
	req := f.createRequest(t, item("paper", 1, 10))

	_, err := f.approvals.Decide(f.ctx, req.Steps[1].ID, model.DecisionApprove, "", actorOf(f.finance))
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.approvals.Decide(f.ctx, req.Steps[0].ID, model.DecisionApprove, "", actorOf(f.manager))
	require.NoError(t, err)

	res, err := f.approvals.Decide(f.ctx, req.Steps[1].ID, model.DecisionApprove, "", actorOf(f.finance))
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, res.RequestStatus)
}

func TestDecide_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errBoom
	req := f.createRequest(t, item("paper", 1, 10))

	res := f.approveAll(t, req)
	assert.Equal(t, model.RequestApproved, res.RequestStatus)
	assert.Equal(t, model.RequestApproved, f.reload(t, req.ID).Status)
}

func TestListPendingForApprover(t *testing.T) {
	f := newFixture(t)
	a := f.createRequest(t, item("a", 1, 1))
	b := f.createRequest(t, item("b", 1, 1))

	pending, err := f.approvals.ListPendingForApprover(f.ctx, f.manager.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = f.approvals.Decide(f.ctx, a.Steps[0].ID, model.DecisionApprove, "", actorOf(f.manager))
	require.NoError(t, err)
	_, err = f.approvals.Decide(f.ctx, b.Steps[1].ID, model.DecisionReject, "", actorOf(f.finance))
	require.NoError(t, err)

	pending, err = f.approvals.ListPendingForApprover(f.ctx, f.manager.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = f.approvals.ListPendingForApprover(f.ctx, f.finance.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.RequestNo, pending[0].RequestNo)
}

func TestReplaceChain(t *testing.T) {
	f := newFixture(t)
	before := f.createRequest(t, item("a", 1, 1))

	dto := ReplaceChainRequest{Entries: []ChainEntryDTO{{StepName: "Director", ApproverID: f.admin.ID.String()}}}

	_, err := f.approvals.ReplaceChain(f.ctx, dto, actorOf(f.manager))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.approvals.ReplaceChain(f.ctx, ReplaceChainRequest{Entries: []ChainEntryDTO{{StepName: "X", ApproverID: uuid.NewString()}}}, actorOf(f.admin))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	chain, err := f.approvals.ReplaceChain(f.ctx, dto, actorOf(f.admin))
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "Director", chain[0].StepName)
	assert.Equal(t, "root", chain[0].ApproverName)

	after := f.createRequest(t, item("b", 1, 1))
	assert.Len(t, after.Steps, 1)
	assert.Len(t, f.reload(t, before.ID).Steps, 2)
}

func TestSeedChain(t *testing.T) {
	f := newFixture(t, withoutChain())

	err := f.approvals.SeedChain(f.ctx, []ChainSeed{{Name: "Boss", ApproverUsername: "nobody"}})
	assert.ErrorIs(t, err, apperror.ErrConfiguration)

	require.NoError(t, f.approvals.SeedChain(f.ctx, []ChainSeed{{Name: "Boss", ApproverUsername: "bob"}}))
	// a second seed keeps the existing chain
	require.NoError(t, f.approvals.SeedChain(f.ctx, []ChainSeed{{Name: "Other", ApproverUsername: "carol"}}))

	chain, err := f.approvals.GetChain(f.ctx)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "Boss", chain[0].StepName)
	assert.Equal(t, f.manager.ID, chain[0].ApproverID)
}

func TestDecide_ConcurrentDecisionsOnOneStep(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))
	step := req.Steps[0]

	decisions := []model.Decision{model.DecisionApprove, model.DecisionReject}
	errs := make([]error, len(decisions))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, d := range decisions {
		wg.Add(1)
		go func(i int, d model.Decision) {
			defer wg.Done()
			<-start
			_, errs[i] = f.approvals.Decide(f.ctx, step.ID, d, "", actorOf(f.manager))
		}(i, d)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	events := f.historyEvents(t, req.ID)
	assert.Equal(t, 1, events[model.HistoryStepApproved]+events[model.HistoryStepRejected])
}

func TestGetStep(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, item("paper", 1, 10))

	step, err := f.approvals.GetStep(f.ctx, req.Steps[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", step.StepName)
	assert.Equal(t, "carol", step.ApproverName)
	assert.Equal(t, req.ID, step.RequestID)
	assert.Equal(t, req.RequestNo, step.RequestNo)
	assert.Equal(t, model.StepPending, step.Status)

	_, err = f.approvals.GetStep(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
