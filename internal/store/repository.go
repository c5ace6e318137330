package store

import (
	"context"
	"encoding/json"
)

// TaskRepository persists video tasks. Implementations: MemoryTaskRepository,
// RedisTaskRepository and the Postgres-backed Store.
type TaskRepository interface {
	// CreateTask inserts a new task in the processing state.
	CreateTask(ctx context.Context, id string) (*VideoTask, error)
	GetTask(ctx context.Context, id string) (*VideoTask, error)
	// UpsertTask applies a provider callback. A missing task is created. A task already in a
	// terminal status is returned unchanged with applied=false.
	UpsertTask(ctx context.Context, id string, status TaskStatus, result json.RawMessage) (task *VideoTask, applied bool, err error)
	SetProviderTaskID(ctx context.Context, id, providerTaskID string) error
	// MarkTaskFailed moves a non-terminal task to failed, recording the reason.
	MarkTaskFailed(ctx context.Context, id, reason string) error
}

type TemplateRepository interface {
	ListTemplates(ctx context.Context, typ string) ([]Template, error)
	CreateTemplate(ctx context.Context, t Template) (*Template, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	MarkWebsiteCreated(ctx context.Context, id, websiteURL string) error
}
