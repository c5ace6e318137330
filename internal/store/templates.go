package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Store) ListTemplates(ctx context.Context, typ string) ([]Template, error) {
	q := `
SELECT id, name, types, prompt, image_url
FROM templates
WHERE ($1 = '' OR $1 = ANY(types))
ORDER BY id ASC;
`
	rows, err := s.db.Query(ctx, q, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Template, 0)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Prompt, &t.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateTemplate(ctx context.Context, t Template) (*Template, error) {
	q := `
INSERT INTO templates (id, name, types, prompt, image_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, types, prompt, image_url;
`
	var out Template
	err := s.db.QueryRow(ctx, q, t.ID, t.Name, t.Type, t.Prompt, t.ImageURL).Scan(
		&out.ID, &out.Name, &out.Type, &out.Prompt, &out.ImageURL,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return &out, nil
}
