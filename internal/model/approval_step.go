package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StepStatus is the state of a single approval gate.
type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
)

// Decision is the verdict an approver records on a step.
type Decision string

const (
	DecisionApprove Decision = "APPROVED"
	DecisionReject  Decision = "REJECTED"
)

// IsValid reports whether d is approve or reject.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// StepStatus maps the decision onto the step state it produces.
func (d Decision) StepStatus() StepStatus {
	if d == DecisionApprove {
		return StepApproved
	}
	return StepRejected
}

// ApprovalStep is one gate of a request's approval chain, owned by a single approver.
type ApprovalStep struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"request_id"`
	Sequence   int        `gorm:"type:int;not null" json:"sequence"`
	StepName   string     `gorm:"type:varchar(100);not null" json:"step_name"`
	ApproverID uuid.UUID  `gorm:"type:uuid;not null;index" json:"approver_id"`
	Approver   *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Status     StepStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	DecidedBy  *uuid.UUID `gorm:"type:uuid" json:"decided_by"`
	DecidedAt  *time.Time `json:"decided_at"`
	Comment    string     `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *ApprovalStep) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// ApprovalChainEntry is one configured gate that every new request receives.
type ApprovalChainEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   int       `gorm:"type:int;not null;uniqueIndex" json:"sequence"`
	StepName   string    `gorm:"type:varchar(100);not null" json:"step_name"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null" json:"approver_id"`
	Approver   *User     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e *ApprovalChainEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}
