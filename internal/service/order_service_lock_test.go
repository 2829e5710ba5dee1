package service

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// lockRecorder notes every row lock taken through the request repository.
type lockRecorder struct {
	repository.RequestRepository

	mu    sync.Mutex
	locks []string
}

func (r *lockRecorder) FindItemForUpdate(ctx context.Context, id uuid.UUID) (*model.RequestItem, error) {
	r.record("item:" + id.String())
	return r.RequestRepository.FindItemForUpdate(ctx, id)
}

func (r *lockRecorder) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	r.record("request:" + id.String())
	return r.RequestRepository.FindByIDForUpdate(ctx, id)
}

func (r *lockRecorder) record(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, key)
}

func (r *lockRecorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.locks
	r.locks = nil
	return out
}

func lockKeys(prefix string, ids ...uuid.UUID) []string {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	keys := make([]string, 0, len(sorted))
	for _, id := range sorted {
		keys = append(keys, prefix+id.String())
	}
	return keys
}

func TestOrderLocksItemsThenRequestsInIDOrder(t *testing.T) {
	f := newFixture(t)
	a := f.approvedRequest(t, item("paper", 5, 1), item("pens", 5, 1))
	b := f.approvedRequest(t, item("chairs", 2, 50))

	rec := &lockRecorder{RequestRepository: f.requestRepo}
	svc := NewOrderService(repository.NewTransactionManager(f.db), rec,
		repository.NewOrderRepository(f.db), repository.NewReceiptRepository(f.db), repository.NewVendorRepository(f.db),
		f.historyRepo, repository.NewSequenceRepository(f.db), f.auditRepo, f.notifier, f.renderer, f.files,
		func() time.Time { return f.now }, zap.NewNop())

	want := append(
		lockKeys("item:", a.Items[0].ID, a.Items[1].ID, b.Items[0].ID),
		lockKeys("request:", a.ID, b.ID)...,
	)

	po, err := svc.CreateOrder(f.ctx, actorOf(f.purchaser), CreateOrderDTO{Items: []OrderLineDTO{
		poLine(b.Items[0].ID, 2, 50),
		poLine(a.Items[1].ID, 5, 1),
		poLine(a.Items[0].ID, 5, 1),
	}})
	require.NoError(t, err)
	assert.Equal(t, want, rec.take())

	_, err = svc.CancelOrder(f.ctx, po.PONumber, actorOf(f.purchaser), "")
	require.NoError(t, err)
	assert.Equal(t, want, rec.take())
}
