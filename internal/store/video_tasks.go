package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const videoTaskColumns = `id, status, result, provider_task_id, error, created_at, updated_at`

func (s *Store) CreateTask(ctx context.Context, id string) (*VideoTask, error) {
	q := `
INSERT INTO video_tasks (id, status)
VALUES ($1, $2)
RETURNING ` + videoTaskColumns + `;
`
	t, err := scanVideoTask(s.db.QueryRow(ctx, q, id, string(StatusProcessing)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*VideoTask, error) {
	q := `
SELECT ` + videoTaskColumns + `
FROM video_tasks
WHERE id = $1;
`
	t, err := scanVideoTask(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpsertTask inserts or updates in one statement; the WHERE clause on the conflict branch
// keeps terminal rows untouched, in which case no row is returned.
func (s *Store) UpsertTask(ctx context.Context, id string, status TaskStatus, result json.RawMessage) (*VideoTask, bool, error) {
	q := `
INSERT INTO video_tasks (id, status, result)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    result = EXCLUDED.result,
    updated_at = now()
WHERE video_tasks.status NOT IN ('completed', 'failed')
RETURNING ` + videoTaskColumns + `;
`
	t, err := scanVideoTask(s.db.QueryRow(ctx, q, id, string(status), jsonArg(result)))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := s.GetTask(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *Store) SetProviderTaskID(ctx context.Context, id, providerTaskID string) error {
	q := `
UPDATE video_tasks
SET provider_task_id = $2,
    updated_at = now()
WHERE id = $1;
`
	tag, err := s.db.Exec(ctx, q, id, providerTaskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkTaskFailed(ctx context.Context, id, reason string) error {
	q := `
UPDATE video_tasks
SET status = 'failed',
    error = $2,
    updated_at = now()
WHERE id = $1 AND status NOT IN ('completed', 'failed');
`
	_, err := s.db.Exec(ctx, q, id, reason)
	return err
}

func scanVideoTask(row pgx.Row) (*VideoTask, error) {
	var (
		t      VideoTask
		result []byte
	)
	if err := row.Scan(&t.ID, &t.Status, &result, &t.ProviderTaskID, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		t.Result = json.RawMessage(result)
	}
	return &t, nil
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
