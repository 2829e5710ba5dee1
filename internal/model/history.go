package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	HistoryCreated        = "CREATED"
	HistoryStepApproved   = "STEP_APPROVED"
	HistoryStepRejected   = "STEP_REJECTED"
	HistoryBudgetApproved = "BUDGET_APPROVED"
	HistoryBudgetRejected = "BUDGET_REJECTED"
	HistoryOrdered        = "ORDERED"
	HistoryOrderCancelled = "ORDER_CANCELLED"
	HistoryReceived       = "RECEIVED"
	HistoryCancelled      = "CANCELLED"
	HistoryImageAttached  = "IMAGE_ATTACHED"
)

// RequestHistory is the timeline of a purchase request.
type RequestHistory struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID uuid.UUID  `gorm:"type:uuid;not null;index" json:"request_id"`
	RequestNo string     `gorm:"type:varchar(20);index" json:"request_no"`
	ActorID   *uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	Event     string     `gorm:"type:varchar(30);not null" json:"event"`
	Message   string     `gorm:"type:text" json:"message"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (h *RequestHistory) BeforeCreate(tx *gorm.DB) error {
	assignID(&h.ID)
	return nil
}
