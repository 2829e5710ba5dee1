package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestStatus is the stored lifecycle state of a purchase request.
type RequestStatus string

const (
	RequestPending           RequestStatus = "PENDING"
	RequestApproved          RequestStatus = "APPROVED"
	RequestRejected          RequestStatus = "REJECTED"
	RequestAwaitingQuotation RequestStatus = "AWAITING_QUOTATION"
	RequestOrdered           RequestStatus = "ORDERED"
	RequestReceived          RequestStatus = "RECEIVED"
	RequestCancelled         RequestStatus = "CANCELLED"
)

// RequestApproving is never stored. It is reported for pending requests
// that already carry at least one approved step.
const RequestApproving RequestStatus = "APPROVING"

var requestStatuses = map[RequestStatus]struct{}{
	RequestPending:           {},
	RequestApproved:          {},
	RequestRejected:          {},
	RequestAwaitingQuotation: {},
	RequestOrdered:           {},
	RequestReceived:          {},
	RequestCancelled:         {},
}

// IsValid reports whether s is one of the stored request states.
func (s RequestStatus) IsValid() bool {
	_, ok := requestStatuses[s]
	return ok
}

// IsTerminal reports whether no further approval decision can change s.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestRejected || s == RequestCancelled || s == RequestReceived
}

// CountsTowardBudget reports whether a request in state s consumes budget.
func (s RequestStatus) CountsTowardBudget() bool {
	return s != RequestRejected && s != RequestCancelled
}

// ExcludedFromBudget lists the states whose totals are not committed spend.
func ExcludedFromBudget() []RequestStatus {
	return []RequestStatus{RequestRejected, RequestCancelled}
}

// Category tags a request with its purchasing urgency.
type Category string

const (
	CategoryNormal  Category = "NORMAL"
	CategoryUrgent  Category = "URGENT"
	CategoryProject Category = "PROJECT"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryNormal, CategoryUrgent, CategoryProject:
		return true
	}
	return false
}

// PurchaseRequest is a requester's ask for goods. TotalAmount is fixed at
// creation and drives the monthly budget accounting.
type PurchaseRequest struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestNo   string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"request_no"` // RF-MMYYYYnnnn
	RequesterID uuid.UUID       `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester   *User           `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Category    Category        `gorm:"type:varchar(20);not null" json:"category"`
	Title       string          `gorm:"type:varchar(255)" json:"title"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Status      RequestStatus   `gorm:"type:varchar(30);not null;index" json:"status"`
	DueDate     *time.Time      `json:"due_date"`
	Items       []RequestItem   `gorm:"foreignKey:RequestID" json:"items,omitempty"`
	Steps       []ApprovalStep  `gorm:"foreignKey:RequestID" json:"steps,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r *PurchaseRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// RequestItem is one line of a purchase request. QuantityOrdered never
// exceeds Quantity and only grows while purchase orders are raised.
type RequestItem struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"request_id"`
	Request         *PurchaseRequest `gorm:"foreignKey:RequestID" json:"-"`
	LineNo          int              `gorm:"type:int;not null;default:0" json:"line_no"`
	Name            string           `gorm:"type:varchar(255);not null" json:"name"`
	Detail          string           `gorm:"type:text" json:"detail"`
	Quantity        int              `gorm:"type:int;not null" json:"quantity"`
	UnitPrice       decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	QuantityOrdered int              `gorm:"type:int;not null;default:0" json:"quantity_ordered"`
	CatalogItemID   *uuid.UUID       `gorm:"type:uuid;index" json:"catalog_item_id"`
	ImageRef        string           `gorm:"type:varchar(500)" json:"image_ref"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (i *RequestItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Remaining is the quantity that can still be put on a purchase order.
func (i RequestItem) Remaining() int {
	return i.Quantity - i.QuantityOrdered
}

// LineTotal is quantity times unit price.
func (i RequestItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DisplayStatus reports the status shown to users. A pending request with
// at least one approved step is shown as approving.
func DisplayStatus(status RequestStatus, steps []ApprovalStep) RequestStatus {
	if status != RequestPending {
		return status
	}
	for _, st := range steps {
		if st.Status == StepApproved {
			return RequestApproving
		}
	}
	return status
}
