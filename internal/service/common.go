package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"procurement/internal/apperror"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	requestPrefix = "RF"
	orderPrefix   = "PO"
)

// documentNumber formats PREFIX-MMYYYYnnnn.
func documentNumber(prefix string, month string, n int) string {
	// month is YYYY-MM
	return fmt.Sprintf("%s-%s%s%04d", prefix, month[5:7], month[0:4], n)
}

func budgetLockKey(month string) string {
	return "budget:" + month
}

// lookupErr turns a missing row into a NotFound error and wraps everything else.
func lookupErr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", entity, id, err)
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s: %q", field, raw)
	}
	return id, nil
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, actorID uuid.UUID, action, entityID, entityName string, details map[string]any) error {
	payload, _ := json.Marshal(details)
	var userID *uuid.UUID
	if actorID != uuid.Nil {
		userID = &actorID
	}
	entry := model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func appendHistory(ctx context.Context, repo repository.HistoryRepository, req *model.PurchaseRequest, actorID *uuid.UUID, event, message string, at time.Time) error {
	entry := model.RequestHistory{
		RequestID: req.ID,
		RequestNo: req.RequestNo,
		ActorID:   actorID,
		Event:     event,
		Message:   message,
		CreatedAt: at,
	}
	if err := repo.Append(ctx, &entry); err != nil {
		return fmt.Errorf("failed to append history for %s: %w", req.RequestNo, err)
	}
	return nil
}

// notifyQuietly delivers a notification and logs instead of failing.
func notifyQuietly(ctx context.Context, n Notifier, log *zap.Logger, recipient uuid.UUID, template string, data map[string]any) {
	if n == nil || recipient == uuid.Nil {
		return
	}
	if err := n.Notify(ctx, recipient, template, data); err != nil {
		metrics.CollaboratorFailed("notifier")
		log.Warn("notification failed",
			zap.String("template", template),
			zap.String("recipient", recipient.String()),
			zap.Error(err))
	}
}

func ptr[T any](v T) *T { return &v }
