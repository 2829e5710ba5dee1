package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryRepository interface {
	Append(ctx context.Context, entry *model.RequestHistory) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.RequestHistory) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *historyRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistory, error) {
	var entries []model.RequestHistory
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).
		Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
