package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"procurement/internal/database"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sentNotification struct {
	Recipient uuid.UUID
	Template  string
	Data      map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, recipient uuid.UUID, template string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Recipient: recipient, Template: template, Data: data})
	return n.err
}

func (n *recordingNotifier) to(recipient uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.Recipient == recipient {
			out = append(out, s.Template)
		}
	}
	return out
}

type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (s *memoryStore) Store(_ context.Context, name string, content []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	ref := fmt.Sprintf("mem/%d/%s", len(s.files)+1, name)
	s.files[ref] = content
	return ref, nil
}

func (s *memoryStore) Open(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[ref]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", ref)
	}
	return content, nil
}

type stubRenderer struct {
	err   error
	kinds []string
}

func (r *stubRenderer) Render(_ context.Context, kind string, _ any) ([]byte, error) {
	r.kinds = append(r.kinds, kind)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("workbook"), nil
}

func (r *stubRenderer) ContentType() string { return "application/test" }

type fixtureOptions struct {
	mode      string
	policy    string
	precheck  bool
	seedChain bool
}

func withMode(mode string) func(*fixtureOptions) { return func(o *fixtureOptions) { o.mode = mode } }
func withPolicy(policy string) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.policy = policy }
}
func withoutPrecheck() func(*fixtureOptions) { return func(o *fixtureOptions) { o.precheck = false } }
func withoutChain() func(*fixtureOptions)    { return func(o *fixtureOptions) { o.seedChain = false } }

type fixture struct {
	ctx context.Context
	db  *gorm.DB
	now time.Time

	notifier *recordingNotifier
	files    *memoryStore
	renderer *stubRenderer

	requester model.User
	manager   model.User
	finance   model.User
	purchaser model.User
	admin     model.User

	requestRepo  repository.RequestRepository
	approvalRepo repository.ApprovalRepository
	historyRepo  repository.HistoryRepository
	auditRepo    repository.AuditRepository

	budgets     BudgetService
	requests    RequestService
	approvals   ApprovalService
	procurement ProcurementService
	orders      OrderService
	receipts    ReceiptService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T, opts ...func(*fixtureOptions)) *fixture {
	t.Helper()
	o := fixtureOptions{mode: ModeParallel, policy: OverReceiptReject, precheck: true, seedChain: true}
	for _, fn := range opts {
		fn(&o)
	}

	db := newTestDB(t)
	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		notifier: &recordingNotifier{},
		files:    &memoryStore{},
		renderer: &stubRenderer{},
	}
	clock := func() time.Time { return f.now }
	log := zap.NewNop()

	tx := repository.NewTransactionManager(db)
	users := repository.NewUserRepository(db)
	f.requestRepo = repository.NewRequestRepository(db)
	f.approvalRepo = repository.NewApprovalRepository(db)
	f.historyRepo = repository.NewHistoryRepository(db)
	f.auditRepo = repository.NewAuditRepository(db)
	orders := repository.NewOrderRepository(db)
	receipts := repository.NewReceiptRepository(db)
	sequences := repository.NewSequenceRepository(db)

	f.budgets = NewBudgetService(tx, repository.NewBudgetRepository(db), f.requestRepo, f.auditRepo)
	f.requests = NewRequestService(tx, f.requestRepo, f.approvalRepo, orders, f.historyRepo, sequences,
		repository.NewCatalogRepository(db), f.auditRepo, f.budgets, f.files,
		RequestOptions{PrecheckBudget: o.precheck}, clock, log)
	f.approvals = NewApprovalService(tx, f.requestRepo, f.approvalRepo, f.historyRepo, users, f.auditRepo,
		f.budgets, f.notifier, o.mode, clock, log)
	f.procurement = NewProcurementService(f.requestRepo)
	f.orders = NewOrderService(tx, f.requestRepo, orders, receipts, repository.NewVendorRepository(db),
		f.historyRepo, sequences, f.auditRepo, f.notifier, f.renderer, f.files, clock, log)
	f.receipts = NewReceiptService(tx, f.requestRepo, orders, receipts, f.historyRepo, f.auditRepo,
		f.notifier, o.policy, clock, log)

	f.requester = f.addUser(t, users, "alice", model.RoleStaff)
	f.manager = f.addUser(t, users, "bob", model.RoleManager)
	f.finance = f.addUser(t, users, "carol", model.RoleFinance)
	f.purchaser = f.addUser(t, users, "dave", model.RolePurchaser)
	f.admin = f.addUser(t, users, "root", model.RoleAdmin)

	if o.seedChain {
		require.NoError(t, f.approvals.SeedChain(f.ctx, []ChainSeed{
			{Name: "Line manager", ApproverUsername: "bob"},
			{Name: "Finance", ApproverUsername: "carol"},
		}))
	}
	return f
}

func (f *fixture) addUser(t *testing.T, repo repository.UserRepository, name, role string) model.User {
	t.Helper()
	u := model.User{Username: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, repo.Create(f.ctx, &u))
	return u
}

func actorOf(u model.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func item(name string, qty int, price int64) CreateRequestItemDTO {
	return CreateRequestItemDTO{Name: name, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func (f *fixture) setBudget(t *testing.T, month string, amount int64) {
	t.Helper()
	_, err := f.budgets.SetMonthlyBudget(f.ctx, month, decimal.NewFromInt(amount), actorOf(f.finance))
	require.NoError(t, err)
}

func (f *fixture) createRequest(t *testing.T, items ...CreateRequestItemDTO) *RequestResponse {
	t.Helper()
	req, err := f.requests.CreateRequest(f.ctx, actorOf(f.requester), CreateRequestDTO{Title: "supplies", Items: items})
	require.NoError(t, err)
	return req
}

func (f *fixture) approverOf(step StepResponse) Actor {
	switch step.ApproverID {
	case f.manager.ID:
		return actorOf(f.manager)
	case f.finance.ID:
		return actorOf(f.finance)
	}
	return actorOf(f.admin)
}

// approveAll approves every step in sequence and returns the last result.
func (f *fixture) approveAll(t *testing.T, req *RequestResponse) *DecisionResult {
	t.Helper()
	var res *DecisionResult
	for _, st := range req.Steps {
		var err error
		res, err = f.approvals.Decide(f.ctx, st.ID, model.DecisionApprove, "ok", f.approverOf(st))
		require.NoError(t, err)
	}
	return res
}

func (f *fixture) approvedRequest(t *testing.T, items ...CreateRequestItemDTO) *RequestResponse {
	t.Helper()
	req := f.createRequest(t, items...)
	res := f.approveAll(t, req)
	require.Equal(t, model.RequestApproved, res.RequestStatus)
	loaded, err := f.requests.GetRequest(f.ctx, req.ID)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *RequestResponse {
	t.Helper()
	req, err := f.requests.GetRequest(f.ctx, id)
	require.NoError(t, err)
	return req
}

func (f *fixture) historyEvents(t *testing.T, id uuid.UUID) map[string]int {
	t.Helper()
	entries, err := f.requests.GetHistory(f.ctx, id)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, e := range entries {
		out[e.Event]++
	}
	return out
}

var errBoom = errors.New("boom")

func repositoryAuditFilter(action string) repository.AuditFilter {
	return repository.AuditFilter{Action: action, Page: 1, Limit: 50}
}
