package document

import (
	"bytes"
	"context"
	"testing"
	"time"

	"procurement/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRenderPurchaseOrder(t *testing.T) {
	r := NewXLSXRenderer("Acme Corp", nil)
	po := &model.PurchaseOrder{
		PONumber:    "PO-1020260001",
		Status:      model.OrderSent,
		TotalAmount: decimal.NewFromInt(500),
		CreatedAt:   time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC),
		Vendor:      &model.Vendor{Name: "Paper Supplies Ltd"},
		Items: []model.PurchaseOrderItem{
			{Name: "A4 paper", Quantity: 5, UnitPrice: decimal.NewFromInt(100), QuotationRef: "Q-77"},
		},
	}

	out, err := r.Render(context.Background(), KindPurchaseOrder, po)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	number, err := f.GetCellValue(sheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "PO-1020260001", number)

	vendor, _ := f.GetCellValue(sheet, "B7")
	assert.Equal(t, "Paper Supplies Ltd", vendor)

	item, _ := f.GetCellValue(sheet, "B10")
	assert.Equal(t, "A4 paper", item)

	amount, _ := f.GetCellValue(sheet, "E10")
	assert.Equal(t, "500", amount)

	total, _ := f.GetCellValue(sheet, "E11")
	assert.Equal(t, "500", total)
}

func TestRenderRejectsUnknownKind(t *testing.T) {
	r := NewXLSXRenderer("Acme Corp", nil)

	_, err := r.Render(context.Background(), "invoice", nil)
	assert.ErrorContains(t, err, "unknown document kind")

	_, err = r.Render(context.Background(), KindPurchaseOrder, "not an order")
	assert.Error(t, err)
}
