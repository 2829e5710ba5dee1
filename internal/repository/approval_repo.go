package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApprovalRepository interface {
	CreateSteps(ctx context.Context, steps []model.ApprovalStep) error
	FindStepByID(ctx context.Context, id uuid.UUID) (*model.ApprovalStep, error)
	FindStepForUpdate(ctx context.Context, id uuid.UUID) (*model.ApprovalStep, error)
	ListSteps(ctx context.Context, requestID uuid.UUID) ([]model.ApprovalStep, error)
	DecideStep(ctx context.Context, id uuid.UUID, status model.StepStatus, actorID uuid.UUID, comment string, at time.Time) (bool, error)
	CountPending(ctx context.Context, requestID uuid.UUID) (int64, error)
	CountUndecidedBefore(ctx context.Context, requestID uuid.UUID, sequence int) (int64, error)
	ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]model.ApprovalStep, error)

	ListChain(ctx context.Context) ([]model.ApprovalChainEntry, error)
	ReplaceChain(ctx context.Context, entries []model.ApprovalChainEntry) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) CreateSteps(ctx context.Context, steps []model.ApprovalStep) error {
	if len(steps) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&steps).Error
}

func (r *approvalRepository) FindStepByID(ctx context.Context, id uuid.UUID) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	if err := GetDB(ctx, r.db).Preload("Approver").First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *approvalRepository) FindStepForUpdate(ctx context.Context, id uuid.UUID) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *approvalRepository) ListSteps(ctx context.Context, requestID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	if err := GetDB(ctx, r.db).Preload("Approver").
		Where("request_id = ?", requestID).
		Order("sequence ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

// DecideStep records a verdict on a step that is still pending. It reports
// false when another decision got there first.
func (r *approvalRepository) DecideStep(ctx context.Context, id uuid.UUID, status model.StepStatus, actorID uuid.UUID, comment string, at time.Time) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.ApprovalStep{}).
		Where("id = ? AND status = ?", id, model.StepPending).
		Updates(map[string]any{
			"status":     status,
			"decided_by": actorID,
			"decided_at": at,
			"comment":    comment,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *approvalRepository) CountPending(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalStep{}).
		Where("request_id = ? AND status = ?", requestID, model.StepPending).
		Count(&n).Error
	return n, err
}

// CountUndecidedBefore counts steps ahead of sequence that are not yet approved.
func (r *approvalRepository) CountUndecidedBefore(ctx context.Context, requestID uuid.UUID, sequence int) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalStep{}).
		Where("request_id = ? AND sequence < ? AND status <> ?", requestID, sequence, model.StepApproved).
		Count(&n).Error
	return n, err
}

// ListPendingForApprover returns the approver's open steps on requests that
// are still awaiting approval.
func (r *approvalRepository) ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	if err := GetDB(ctx, r.db).
		Joins("JOIN purchase_requests ON purchase_requests.id = approval_steps.request_id").
		Where("approval_steps.approver_id = ? AND approval_steps.status = ?", approverID, model.StepPending).
		Where("purchase_requests.status = ?", model.RequestPending).
		Order("purchase_requests.created_at ASC, approval_steps.sequence ASC").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *approvalRepository) ListChain(ctx context.Context) ([]model.ApprovalChainEntry, error) {
	var entries []model.ApprovalChainEntry
	if err := GetDB(ctx, r.db).Preload("Approver").Order("sequence ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceChain swaps the whole configured chain. Existing requests keep
// the steps they were created with.
func (r *approvalRepository) ReplaceChain(ctx context.Context, entries []model.ApprovalChainEntry) error {
	db := GetDB(ctx, r.db)
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.ApprovalChainEntry{}).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return db.Create(&entries).Error
}
