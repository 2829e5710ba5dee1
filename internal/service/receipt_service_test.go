package service

import (
	"testing"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(lines ...ReceiptLineDTO) RecordReceiptDTO {
	return RecordReceiptDTO{Items: lines}
}

func receiptLine(poItemID uuid.UUID, qty int) ReceiptLineDTO {
	return ReceiptLineDTO{POItemID: poItemID.String(), Quantity: qty}
}

func TestRecordReceipt_PartialThenFulfilled(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2))
	po := f.order(t, poLine(req.Items[0].ID, 5, 2))
	poItem := po.Items[0].ID

	first, err := f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(poItem, 3)), actorOf(f.purchaser))
	require.NoError(t, err)
	assert.Equal(t, model.OrderPartial, first.OrderStatus)
	assert.Equal(t, f.purchaser.ID, first.ReceivedBy)

	got, err := f.orders.GetOrder(f.ctx, po.PONumber)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPartial, got.Status)
	assert.Equal(t, 3, got.Items[0].Received)
	assert.Equal(t, model.RequestOrdered, f.reload(t, req.ID).Status)

	second, err := f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(poItem, 2)), actorOf(f.purchaser))
	require.NoError(t, err)
	assert.Equal(t, model.OrderFulfilled, second.OrderStatus)

	got, err = f.orders.GetOrder(f.ctx, po.PONumber)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFulfilled, got.Status)
	assert.Equal(t, 5, got.Items[0].Received)

	assert.Equal(t, model.RequestReceived, f.reload(t, req.ID).Status)
	assert.Equal(t, 1, f.historyEvents(t, req.ID)[model.HistoryReceived])
	assert.Contains(t, f.notifier.to(f.purchaser.ID), notify.TemplateGoodsReceived)

	receipts, err := f.receipts.ListReceipts(f.ctx, po.PONumber)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	total := 0
	for _, r := range receipts {
		require.Len(t, r.Items, 1)
		total += r.Items[0].QuantityReceived
	}
	assert.Equal(t, 5, total)
}

func TestRecordReceipt_PartiallyOrderedRequestStaysApproved(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2))
	po := f.order(t, poLine(req.Items[0].ID, 2, 2))

	res, err := f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(po.Items[0].ID, 2)), actorOf(f.purchaser))
	require.NoError(t, err)
	assert.Equal(t, model.OrderFulfilled, res.OrderStatus)
	assert.Equal(t, model.RequestApproved, f.reload(t, req.ID).Status)
}

func TestRecordReceipt_RequestSpanningOrders(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2))
	a := f.order(t, poLine(req.Items[0].ID, 2, 2))
	b := f.order(t, poLine(req.Items[0].ID, 3, 2))

	_, err := f.receipts.RecordReceipt(f.ctx, b.PONumber, receive(receiptLine(b.Items[0].ID, 3)), actorOf(f.purchaser))
	require.NoError(t, err)
	assert.Equal(t, model.RequestOrdered, f.reload(t, req.ID).Status)

	_, err = f.receipts.RecordReceipt(f.ctx, a.PONumber, receive(receiptLine(a.Items[0].ID, 2)), actorOf(f.purchaser))
	require.NoError(t, err)
	assert.Equal(t, model.RequestReceived, f.reload(t, req.ID).Status)
}

func TestRecordReceipt_LineMustBelongToOrder(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2), item("pens", 5, 1))
	a := f.order(t, poLine(req.Items[0].ID, 5, 2))
	b := f.order(t, poLine(req.Items[1].ID, 5, 1))

	_, err := f.receipts.RecordReceipt(f.ctx, a.PONumber, receive(receiptLine(b.Items[0].ID, 1)), actorOf(f.purchaser))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	receipts, err := f.receipts.ListReceipts(f.ctx, a.PONumber)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestRecordReceipt_Validation(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2))
	po := f.order(t, poLine(req.Items[0].ID, 5, 2))
	id := po.Items[0].ID

	cases := []struct {
		name     string
		poNumber string
		dto      RecordReceiptDTO
		want     error
	}{
		{"no lines", po.PONumber, RecordReceiptDTO{}, apperror.ErrValidation},
		{"zero quantity", po.PONumber, receive(receiptLine(id, 0)), apperror.ErrValidation},
		{"duplicate line", po.PONumber, receive(receiptLine(id, 1), receiptLine(id, 1)), apperror.ErrValidation},
		{"bad id", po.PONumber, receive(ReceiptLineDTO{POItemID: "x", Quantity: 1}), apperror.ErrValidation},
		{"unknown order", "PO-0000000000", receive(receiptLine(id, 1)), apperror.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.receipts.RecordReceipt(f.ctx, tc.poNumber, tc.dto, actorOf(f.purchaser))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRecordReceipt_OverReceiptRejectedByDefault(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2))
	po := f.order(t, poLine(req.Items[0].ID, 5, 2))

	_, err := f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(po.Items[0].ID, 4)), actorOf(f.purchaser))
	require.NoError(t, err)

	_, err = f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(po.Items[0].ID, 2)), actorOf(f.purchaser))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	got, err := f.orders.GetOrder(f.ctx, po.PONumber)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Items[0].Received)
	assert.Equal(t, model.OrderPartial, got.Status)
}

func TestRecordReceipt_OverReceiptFlagged(t *testing.T) {
	f := newFixture(t, withPolicy(OverReceiptFlag))
	req := f.approvedRequest(t, item("paper", 5, 2))
	po := f.order(t, poLine(req.Items[0].ID, 5, 2))

	res, err := f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(po.Items[0].ID, 7)), actorOf(f.purchaser))
	require.NoError(t, err)
	assert.Equal(t, model.OrderFulfilled, res.OrderStatus)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Items[0].OverReceived)

	got, err := f.orders.GetOrder(f.ctx, po.PONumber)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Items[0].Received)
}

func TestRecordReceipt_CancelledOrder(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, item("paper", 5, 2))
	po := f.order(t, poLine(req.Items[0].ID, 5, 2))
	_, err := f.orders.CancelOrder(f.ctx, po.PONumber, actorOf(f.purchaser), "")
	require.NoError(t, err)

	_, err = f.receipts.RecordReceipt(f.ctx, po.PONumber, receive(receiptLine(po.Items[0].ID, 1)), actorOf(f.purchaser))
	assert.ErrorIs(t, err, apperror.ErrConflict)
}
