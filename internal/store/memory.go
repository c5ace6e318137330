package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryTaskRepository keeps tasks in process memory. Records are lost on restart; use
// PruneTasks to bound growth.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*VideoTask
	now   func() time.Time
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		tasks: make(map[string]*VideoTask),
		now:   time.Now,
	}
}

func (r *MemoryTaskRepository) CreateTask(_ context.Context, id string) (*VideoTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; ok {
		return nil, ErrAlreadyExists
	}

	now := r.now()
	t := &VideoTask{
		ID:        id,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.tasks[id] = t
	return t.clone(), nil
}

func (r *MemoryTaskRepository) GetTask(_ context.Context, id string) (*VideoTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.clone(), nil
}

func (r *MemoryTaskRepository) UpsertTask(_ context.Context, id string, status TaskStatus, result json.RawMessage) (*VideoTask, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t, ok := r.tasks[id]
	if !ok {
		t = &VideoTask{ID: id, CreatedAt: now}
		r.tasks[id] = t
	} else if t.Status.Terminal() {
		return t.clone(), false, nil
	}

	t.Status = status
	t.Result = append(json.RawMessage(nil), result...)
	t.UpdatedAt = now
	return t.clone(), true, nil
}

func (r *MemoryTaskRepository) SetProviderTaskID(_ context.Context, id, providerTaskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.ProviderTaskID = providerTaskID
	t.UpdatedAt = r.now()
	return nil
}

func (r *MemoryTaskRepository) MarkTaskFailed(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return nil
	}
	t.Status = StatusFailed
	t.Error = reason
	t.UpdatedAt = r.now()
	return nil
}

// PruneTasks drops terminal tasks last updated before cutoff and returns how many went.
func (r *MemoryTaskRepository) PruneTasks(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			delete(r.tasks, id)
			n++
		}
	}
	return n
}

func (r *MemoryTaskRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

func (t *VideoTask) clone() *VideoTask {
	c := *t
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	return &c
}

// MemoryUserRepository is the development stand-in for the users table.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryUserRepository(seed ...User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*User)}
	for _, u := range seed {
		u := u
		r.users[u.ID] = &u
	}
	return r
}

func (r *MemoryUserRepository) GetUser(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryUserRepository) MarkWebsiteCreated(_ context.Context, id, websiteURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		u = &User{ID: id}
		r.users[id] = u
	}
	u.IsWebsiteCreated = true
	u.WebsiteURL = websiteURL
	u.UpdatedAt = time.Now()
	return nil
}
