package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the state of a purchase order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderSent      OrderStatus = "SENT"
	OrderPartial   OrderStatus = "PARTIAL"
	OrderFulfilled OrderStatus = "FULFILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PurchaseOrder is a vendor-facing order built from approved request items.
type PurchaseOrder struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	PONumber    string              `gorm:"type:varchar(20);uniqueIndex;not null" json:"po_number"` // PO-MMYYYYnnnn
	Status      OrderStatus         `gorm:"type:varchar(20);not null;index" json:"status"`
	VendorID    *uuid.UUID          `gorm:"type:uuid;index" json:"vendor_id"`
	Vendor      *Vendor             `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	TotalAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Note        string              `gorm:"type:text" json:"note"`
	CreatedBy   uuid.UUID           `gorm:"type:uuid;not null" json:"created_by"`
	SentAt      *time.Time          `json:"sent_at"`
	CancelledAt *time.Time          `json:"cancelled_at"`
	Items       []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID" json:"items,omitempty"`
	CreatedAt   time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (o *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// PurchaseOrderItem snapshots a request item at order time.
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	RequestItemID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_item_id"`
	RequestID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	LineNo          int             `gorm:"type:int;not null;default:0" json:"line_no"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity        int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	QuotationRef    string          `gorm:"type:varchar(255)" json:"quotation_ref"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (i *PurchaseOrderItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// DeriveOrderStatus computes an order's status from ordered and received
// quantities keyed by order item. current is returned when nothing has
// been received yet.
func DeriveOrderStatus(current OrderStatus, items []PurchaseOrderItem, received map[uuid.UUID]int) OrderStatus {
	if len(items) == 0 {
		return current
	}
	complete, touched := 0, 0
	for _, it := range items {
		got := received[it.ID]
		if got > 0 {
			touched++
		}
		if got >= it.Quantity {
			complete++
		}
	}
	switch {
	case complete == len(items):
		return OrderFulfilled
	case touched > 0:
		return OrderPartial
	default:
		return current
	}
}
