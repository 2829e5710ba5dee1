package repository

import (
	"context"
	"fmt"

	"procurement/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository hands out gapless document numbers per prefix and period.
type SequenceRepository interface {
	Next(ctx context.Context, prefix, period string) (int, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next increments and returns the counter for (prefix, period). It must run
// inside the caller's transaction; the row update holds the lock until commit.
func (r *sequenceRepository) Next(ctx context.Context, prefix, period string) (int, error) {
	db := GetDB(ctx, r.db)

	seed := model.DocumentSequence{Prefix: prefix, Period: period}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("failed to seed sequence %s/%s: %w", prefix, period, err)
	}

	res := db.Model(&model.DocumentSequence{}).
		Where("prefix = ? AND period = ?", prefix, period).
		UpdateColumn("last_number", gorm.Expr("last_number + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to advance sequence %s/%s: %w", prefix, period, res.Error)
	}

	var seq model.DocumentSequence
	if err := db.First(&seq, "prefix = ? AND period = ?", prefix, period).Error; err != nil {
		return 0, fmt.Errorf("failed to read sequence %s/%s: %w", prefix, period, err)
	}
	return seq.LastNumber, nil
}
