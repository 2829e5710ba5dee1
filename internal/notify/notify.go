// Package notify delivers domain notifications to people. Delivery is best
// effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"

	"procurement/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Templates understood by the notifiers.
const (
	TemplateStepDecided     = "request.step_decided"
	TemplateRequestApproved = "request.approved"
	TemplateRequestRejected = "request.rejected"
	TemplateReadyToOrder    = "request.ready_to_order"
	TemplateOrderSent       = "purchase_order.sent"
	TemplateGoodsReceived   = "purchase_order.received"
)

// Publisher is the part of the websocket hub the notifier needs.
type Publisher interface {
	Publish(ev websocket.Event) error
}

// HubNotifier pushes notifications to the recipient's open websocket sessions.
type HubNotifier struct {
	pub Publisher
}

func NewHubNotifier(pub Publisher) *HubNotifier {
	return &HubNotifier{pub: pub}
}

func (n *HubNotifier) Notify(ctx context.Context, recipient uuid.UUID, template string, data map[string]any) error {
	return n.pub.Publish(websocket.Event{Type: template, Recipient: recipient, Data: data})
}

// LogNotifier writes notifications to the structured log. It stands in
// for mail delivery in development.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient uuid.UUID, template string, data map[string]any) error {
	n.log.Info("notification",
		zap.String("recipient", recipient.String()),
		zap.String("template", template),
		zap.Any("data", data),
	)
	return nil
}

type notifier interface {
	Notify(ctx context.Context, recipient uuid.UUID, template string, data map[string]any) error
}

// Fanout sends every notification through all of its notifiers and joins their errors.
type Fanout []notifier

func (f Fanout) Notify(ctx context.Context, recipient uuid.UUID, template string, data map[string]any) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, recipient, template, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
