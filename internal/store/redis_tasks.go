package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const taskKeyPrefix = "video:task:"

// upsertScript applies a callback atomically. Terminal tasks are left alone.
// Returns 1 when the update was applied, 0 otherwise.
var upsertScript = redis.NewScript(`
local key = KEYS[1]
local status = ARGV[1]
local result = ARGV[2]
local now = ARGV[3]
local ttl = tonumber(ARGV[4])

local old = redis.call('HGET', key, 'status')
if old == 'completed' or old == 'failed' then
	return 0
end
if not old then
	redis.call('HSET', key, 'id', ARGV[5], 'created_at', now)
end
redis.call('HSET', key, 'status', status, 'result', result, 'updated_at', now)
if ttl > 0 then
	redis.call('EXPIRE', key, ttl)
end
return 1
`)

var createScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
	return 0
end
redis.call('HSET', key, 'id', ARGV[1], 'status', ARGV[2], 'created_at', ARGV[3], 'updated_at', ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
	redis.call('EXPIRE', key, ttl)
end
return 1
`)

// setProviderScript never creates the hash, so a task that expired or was never
// created stays absent. Returns 0 when the key is missing.
var setProviderScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
	return 0
end
redis.call('HSET', key, 'provider_task_id', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

var markFailedScript = redis.NewScript(`
local key = KEYS[1]
local old = redis.call('HGET', key, 'status')
if not old or old == 'completed' or old == 'failed' then
	return 0
end
redis.call('HSET', key, 'status', 'failed', 'error', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

// RedisTaskRepository stores each task as a hash under video:task:<id>.
type RedisTaskRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTaskRepository connects and pings. ttl <= 0 keeps tasks forever.
func NewRedisTaskRepository(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisTaskRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisTaskRepository{client: client, ttl: ttl}, nil
}

func (r *RedisTaskRepository) CreateTask(ctx context.Context, id string) (*VideoTask, error) {
	now := time.Now().UTC()
	ok, err := createScript.Run(ctx, r.client, []string{taskKeyPrefix + id},
		id, string(StatusProcessing), now.Format(time.RFC3339Nano), int64(r.ttl.Seconds()),
	).Int()
	if err != nil {
		return nil, err
	}
	if ok == 0 {
		return nil, ErrAlreadyExists
	}
	return &VideoTask{ID: id, Status: StatusProcessing, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *RedisTaskRepository) GetTask(ctx context.Context, id string) (*VideoTask, error) {
	fields, err := r.client.HGetAll(ctx, taskKeyPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return taskFromHash(id, fields), nil
}

func (r *RedisTaskRepository) UpsertTask(ctx context.Context, id string, status TaskStatus, result json.RawMessage) (*VideoTask, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	applied, err := upsertScript.Run(ctx, r.client, []string{taskKeyPrefix + id},
		string(status), string(result), now, int64(r.ttl.Seconds()), id,
	).Int()
	if err != nil {
		return nil, false, err
	}

	t, err := r.GetTask(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return t, applied == 1, nil
}

func (r *RedisTaskRepository) SetProviderTaskID(ctx context.Context, id, providerTaskID string) error {
	n, err := setProviderScript.Run(ctx, r.client, []string{taskKeyPrefix + id},
		providerTaskID, time.Now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisTaskRepository) MarkTaskFailed(ctx context.Context, id, reason string) error {
	return markFailedScript.Run(ctx, r.client, []string{taskKeyPrefix + id},
		reason, time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
}

func (r *RedisTaskRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTaskRepository) Close() error {
	return r.client.Close()
}

func taskFromHash(id string, f map[string]string) *VideoTask {
	t := &VideoTask{
		ID:             id,
		Status:         TaskStatus(f["status"]),
		ProviderTaskID: f["provider_task_id"],
		Error:          f["error"],
	}
	if v := f["result"]; v != "" {
		t.Result = json.RawMessage(v)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, f["created_at"])
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, f["updated_at"])
	return t
}
