package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateRequest = "CREATE_REQUEST"
	ActionDeleteRequest = "DELETE_REQUEST"
	ActionCancelRequest = "CANCEL_REQUEST"
	ActionApproveStep   = "APPROVE_STEP"
	ActionRejectStep    = "REJECT_STEP"
	ActionSetBudget     = "SET_BUDGET"
	ActionCreateOrder   = "CREATE_PURCHASE_ORDER"
	ActionCancelOrder   = "CANCEL_PURCHASE_ORDER"
	ActionRecordReceipt = "RECORD_GOODS_RECEIPT"
	ActionReplaceChain  = "REPLACE_APPROVAL_CHAIN"
	ActionCreateVendor  = "CREATE_VENDOR"
	ActionUpdateVendor  = "UPDATE_VENDOR"
	ActionDeleteVendor  = "DELETE_VENDOR"
	ActionCreateCatalog = "CREATE_CATALOG_ITEM"
	ActionUpdateCatalog = "UPDATE_CATALOG_ITEM"
	ActionDeleteCatalog = "DELETE_CATALOG_ITEM"
)

// AuditLog tracks who changed what and when
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for system actions
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"` // JSON payload
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
