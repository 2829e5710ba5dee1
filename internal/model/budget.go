package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MonthLayout is the key format of a budget month.
const MonthLayout = "2006-01"

// MonthlyBudget is the spending ceiling of one calendar month. A month
// without a row has no ceiling.
type MonthlyBudget struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Month     string          `gorm:"type:varchar(7);uniqueIndex;not null" json:"month"` // YYYY-MM
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	UpdatedBy *uuid.UUID      `gorm:"type:uuid" json:"updated_by"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (b *MonthlyBudget) BeforeCreate(tx *gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// MonthOf returns the budget month key of t in UTC.
func MonthOf(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// MonthRange parses a YYYY-MM key and returns the half-open UTC interval it covers.
func MonthRange(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(MonthLayout, month, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	return start, start.AddDate(0, 1, 0), nil
}
