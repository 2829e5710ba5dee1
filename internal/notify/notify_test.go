package notify

import (
	"context"
	"errors"
	"testing"

	"procurement/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePublisher struct {
	events []websocket.Event
	err    error
}

func (p *fakePublisher) Publish(ev websocket.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestHubNotifierPublishesToRecipient(t *testing.T) {
	pub := &fakePublisher{}
	n := NewHubNotifier(pub)
	recipient := uuid.New()

	err := n.Notify(context.Background(), recipient, TemplateRequestApproved, map[string]any{"request_no": "RF-1020260001"})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, recipient, pub.events[0].Recipient)
	assert.Equal(t, TemplateRequestApproved, pub.events[0].Type)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), uuid.New(), TemplateOrderSent, nil))
	assert.Equal(t, 1, logs.FilterMessage("notification").Len())
}

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("hub down")
	ok := &fakePublisher{}
	failing := &fakePublisher{err: boom}
	f := Fanout{NewHubNotifier(failing), NewHubNotifier(ok)}

	err := f.Notify(context.Background(), uuid.New(), TemplateStepDecided, nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.events, 1)
}
