package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role groups permissions under a name carried in the access token.
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// Permission is a single capability such as "requests.create".
type Permission struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code  string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name  string    `gorm:"type:varchar(255);not null" json:"name"`
	Group string    `gorm:"type:varchar(50);not null;index" json:"group"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Permission codes checked by the HTTP layer.
const (
	PermRequestsRead    = "requests.read"
	PermRequestsCreate  = "requests.create"
	PermRequestsDelete  = "requests.delete"
	PermApprovalsRead   = "approvals.read"
	PermApprovalsDecide = "approvals.decide"
	PermApprovalsManage = "approvals.manage"
	PermBudgetsRead     = "budgets.read"
	PermBudgetsWrite    = "budgets.write"
	PermProcurementRead = "procurement.read"
	PermOrdersRead      = "orders.read"
	PermOrdersWrite     = "orders.write"
	PermReceiptsWrite   = "receipts.write"
	PermVendorsRead     = "vendors.read"
	PermVendorsWrite    = "vendors.write"
	PermCatalogRead     = "catalog.read"
	PermCatalogWrite    = "catalog.write"
	PermUsersRead       = "users.read"
	PermUsersWrite      = "users.write"
	PermUsersDelete     = "users.delete"
	PermAuditRead       = "audit.read"
	PermRolesManage     = "roles.manage"
)
