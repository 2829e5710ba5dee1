package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogItem is a master entry that request items may reference.
type CatalogItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SKU          string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit         string          `gorm:"type:varchar(30)" json:"unit"`
	DefaultPrice decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"default_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (c *CatalogItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}
