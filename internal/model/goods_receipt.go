package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GoodsReceipt groups the quantities delivered against one purchase order in a single event.
type GoodsReceipt struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID          `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	ReceivedBy      uuid.UUID          `gorm:"type:uuid;not null" json:"received_by"`
	ReceivedAt      time.Time          `gorm:"not null" json:"received_at"`
	Notes           string             `gorm:"type:text" json:"notes"`
	Items           []GoodsReceiptItem `gorm:"foreignKey:GoodsReceiptID" json:"items"`
	CreatedAt       time.Time          `json:"created_at"`
}

func (g *GoodsReceipt) BeforeCreate(tx *gorm.DB) error {
	assignID(&g.ID)
	return nil
}

// GoodsReceiptItem is the quantity received for one purchase order line.
type GoodsReceiptItem struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GoodsReceiptID      uuid.UUID `gorm:"type:uuid;not null;index" json:"goods_receipt_id"`
	PurchaseOrderItemID uuid.UUID `gorm:"type:uuid;not null;index" json:"purchase_order_item_id"`
	QuantityReceived    int       `gorm:"type:int;not null" json:"quantity_received"`
	OverReceived        bool      `gorm:"default:false" json:"over_received"`
}

func (g *GoodsReceiptItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&g.ID)
	return nil
}
