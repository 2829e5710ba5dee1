// Package document renders procurement documents for vendors.
package document

import (
	"bytes"
	"context"
	"fmt"

	"procurement/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// KindPurchaseOrder renders a *model.PurchaseOrder.
const KindPurchaseOrder = "purchase_order"

const sheet = "Purchase Order"

// XLSXRenderer renders documents as Excel workbooks.
type XLSXRenderer struct {
	companyName string
	log         *zap.Logger
}

func NewXLSXRenderer(companyName string, log *zap.Logger) *XLSXRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &XLSXRenderer{companyName: companyName, log: log}
}

// ContentType is the MIME type of rendered documents.
func (r *XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render builds the workbook for kind from data.
func (r *XLSXRenderer) Render(ctx context.Context, kind string, data any) ([]byte, error) {
	switch kind {
	case KindPurchaseOrder:
		po, ok := data.(*model.PurchaseOrder)
		if !ok {
			return nil, fmt.Errorf("purchase order document needs *model.PurchaseOrder, got %T", data)
		}
		return r.renderPurchaseOrder(po)
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
}

func (r *XLSXRenderer) renderPurchaseOrder(po *model.PurchaseOrder) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	r.setCell(f, "A1", r.companyName)
	r.setCell(f, "A2", "PURCHASE ORDER")
	r.setCell(f, "A4", "PO Number")
	r.setCell(f, "B4", po.PONumber)
	r.setCell(f, "A5", "Status")
	r.setCell(f, "B5", string(po.Status))
	r.setCell(f, "A6", "Date")
	r.setCell(f, "B6", po.CreatedAt.Format("2006-01-02"))
	if po.Vendor != nil {
		r.setCell(f, "A7", "Vendor")
		r.setCell(f, "B7", po.Vendor.Name)
	}

	headers := []string{"#", "Item", "Quantity", "Unit Price", "Amount", "Quotation"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 9)
		r.setCell(f, cell, h)
	}

	row := 10
	for i, it := range po.Items {
		amount := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		values := []any{i + 1, it.Name, it.Quantity, it.UnitPrice.InexactFloat64(), amount.InexactFloat64(), it.QuotationRef}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
		row++
	}

	totalCell, _ := excelize.CoordinatesToCellName(5, row)
	r.setCell(f, fmt.Sprintf("D%d", row), "Total")
	if err := f.SetCellValue(sheet, totalCell, po.TotalAmount.InexactFloat64()); err != nil {
		return nil, fmt.Errorf("failed to write total: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	r.log.Debug("purchase order rendered", zap.String("po_number", po.PONumber), zap.Int("lines", len(po.Items)))
	return buf.Bytes(), nil
}

func (r *XLSXRenderer) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.log.Warn("failed to set cell value", zap.String("cell", cell), zap.Error(err))
	}
}
