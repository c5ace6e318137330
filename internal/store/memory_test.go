package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTaskRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()

	created, err := repo.CreateTask(ctx, "vid_1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, created.Status)
	assert.Nil(t, created.Result)

	got, err := repo.GetTask(ctx, "vid_1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, StatusProcessing, got.Status)

	_, err = repo.CreateTask(ctx, "vid_1")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryTaskRepository_GetNotFound(t *testing.T) {
	_, err := NewMemoryTaskRepository().GetTask(context.Background(), "doesnotexist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTaskRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	_, err := repo.CreateTask(ctx, "vid_1")
	require.NoError(t, err)

	body := json.RawMessage(`{"status":"completed","output":{"video_url":"https://cdn/x.mp4"}}`)
	task, applied, err := repo.UpsertTask(ctx, "vid_1", StatusCompleted, body)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.JSONEq(t, string(body), string(task.Result))
}

func TestMemoryTaskRepository_UpsertUnknownIDCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()

	_, applied, err := repo.UpsertTask(ctx, "never-seen", StatusFailed, json.RawMessage(`{"status":"failed"}`))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.GetTask(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryTaskRepository_TerminalStatusIsSticky(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	_, err := repo.CreateTask(ctx, "vid_1")
	require.NoError(t, err)

	first := json.RawMessage(`{"status":"completed"}`)
	_, _, err = repo.UpsertTask(ctx, "vid_1", StatusCompleted, first)
	require.NoError(t, err)

	task, applied, err := repo.UpsertTask(ctx, "vid_1", StatusFailed, json.RawMessage(`{"status":"failed"}`))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.JSONEq(t, string(first), string(task.Result))

	require.NoError(t, repo.MarkTaskFailed(ctx, "vid_1", "late"))
	got, _ := repo.GetTask(ctx, "vid_1")
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMemoryTaskRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	_, err := repo.CreateTask(ctx, "vid_1")
	require.NoError(t, err)

	require.NoError(t, repo.MarkTaskFailed(ctx, "vid_1", "provider returned 400"))

	got, err := repo.GetTask(ctx, "vid_1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "provider returned 400", got.Error)
}

func TestMemoryTaskRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	_, _, err := repo.UpsertTask(ctx, "vid_1", StatusUnknown, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)

	got, _ := repo.GetTask(ctx, "vid_1")
	got.Status = StatusCompleted
	got.Result[0] = '['

	again, _ := repo.GetTask(ctx, "vid_1")
	assert.Equal(t, StatusUnknown, again.Status)
	assert.JSONEq(t, `{"a":1}`, string(again.Result))
}

func TestMemoryTaskRepository_Prune(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	_, _ = repo.CreateTask(ctx, "old-processing")
	_, _, _ = repo.UpsertTask(ctx, "old-done", StatusCompleted, nil)

	repo.now = func() time.Time { return base.Add(48 * time.Hour) }
	_, _, _ = repo.UpsertTask(ctx, "new-done", StatusCompleted, nil)

	removed := repo.PruneTasks(base.Add(24 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, repo.Len())

	_, err := repo.GetTask(ctx, "old-done")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetTask(ctx, "old-processing")
	assert.NoError(t, err)
}

func TestMemoryTaskRepository_ConcurrentCallbacks(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("vid_%d", i%5)
			_, _, _ = repo.UpsertTask(ctx, id, StatusProcessing, json.RawMessage(`{}`))
			_, _ = repo.GetTask(ctx, id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, repo.Len())
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(User{ID: "uid-1", ShopName: "Aurum"})

	u, err := repo.GetUser(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Aurum", u.ShopName)

	require.NoError(t, repo.MarkWebsiteCreated(ctx, "uid-1", "https://site"))
	u, _ = repo.GetUser(ctx, "uid-1")
	assert.True(t, u.IsWebsiteCreated)
	assert.Equal(t, "https://site", u.WebsiteURL)

	_, err = repo.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
