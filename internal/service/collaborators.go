package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers a templated message to one person.
type Notifier interface {
	Notify(ctx context.Context, recipient uuid.UUID, template string, data map[string]any) error
}

// DocumentRenderer turns domain data into a printable document.
type DocumentRenderer interface {
	Render(ctx context.Context, kind string, data any) ([]byte, error)
	ContentType() string
}

// FileStore keeps uploaded or generated files and returns a reference to them.
type FileStore interface {
	Store(ctx context.Context, name string, content []byte) (string, error)
	Open(ctx context.Context, ref string) ([]byte, error)
}

// Clock returns the current time. Services call it once per operation.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, string, map[string]any) error { return nil }
