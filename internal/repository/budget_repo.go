package repository

import (
	"context"

	"procurement/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BudgetRepository interface {
	FindByMonth(ctx context.Context, month string) (*model.MonthlyBudget, error)
	Upsert(ctx context.Context, budget *model.MonthlyBudget) error
}

type budgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func (r *budgetRepository) FindByMonth(ctx context.Context, month string) (*model.MonthlyBudget, error) {
	var b model.MonthlyBudget
	if err := GetDB(ctx, r.db).Where("month = ?", month).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// Upsert sets the ceiling for budget.Month, replacing any previous amount.
func (r *budgetRepository) Upsert(ctx context.Context, budget *model.MonthlyBudget) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_by", "updated_at"}),
	}).Create(budget).Error
}
