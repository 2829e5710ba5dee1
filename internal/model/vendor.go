package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vendor is a supplier that purchase orders are sent to.
type Vendor struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	TaxCode       string         `gorm:"type:varchar(50)" json:"tax_code"`
	ContactPerson string         `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string         `gorm:"type:varchar(50)" json:"phone"`
	Email         string         `gorm:"type:varchar(255)" json:"email"`
	Address       string         `gorm:"type:text" json:"address"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	return nil
}
