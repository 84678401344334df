// Package notify hands social events to the notification collaborator
// without blocking the write path that produced them.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/logger"
)

// EventType identifies a notification trigger.
type EventType string

const (
	EventLike   EventType = "like"
	EventFollow EventType = "follow"
)

// Event is emitted after an association was newly created.
type Event struct {
	Type EventType
	// ActorUserID performed the action.
	ActorUserID string
	// RecipientUserID owns the target. Empty when unknown.
	RecipientUserID string
	TargetID        string
	// TargetKind is the content kind for likes, empty for follows.
	TargetKind string
	At         time.Time
}

// Notifier delivers events. Push delivery itself lives outside this module.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogNotifier records events in the log. It is the default collaborator.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	logger.OrDiscard(n.Logger).Info("notification",
		"type", event.Type,
		"actor_id", event.ActorUserID,
		"recipient_id", event.RecipientUserID,
		"target_id", event.TargetID,
		"target_kind", event.TargetKind,
	)
	return nil
}
