// Package events announces video task state changes on NATS JetStream.
package events

import (
	"context"
	"time"

	"github.com/dedezza1D/lustra/internal/store"
)

const (
	SubjectSubmitted = "video.tasks.submitted"
	SubjectCompleted = "video.tasks.completed"
	SubjectFailed    = "video.tasks.failed"
	SubjectUpdated   = "video.tasks.updated"
	// SubjectAll matches every task event.
	SubjectAll = "video.tasks.>"
)

type Kind string

const (
	KindSubmitted Kind = "submitted"
	KindCallback  Kind = "callback"
	KindFailed    Kind = "failed"
)

type TaskEvent struct {
	TaskID         string           `json:"taskId"`
	Status         store.TaskStatus `json:"status"`
	ProviderTaskID string           `json:"providerTaskId,omitempty"`
	Error          string           `json:"error,omitempty"`
	At             time.Time        `json:"at"`
}

// Subject picks the subject for an event from its status.
func Subject(kind Kind, status store.TaskStatus) string {
	switch {
	case kind == KindSubmitted:
		return SubjectSubmitted
	case status == store.StatusCompleted:
		return SubjectCompleted
	case kind == KindFailed || status == store.StatusFailed:
		return SubjectFailed
	default:
		return SubjectUpdated
	}
}

// Publisher delivers task events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, kind Kind, ev TaskEvent) error
}

// Nop drops every event. Used when NATS is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Kind, TaskEvent) error { return nil }
