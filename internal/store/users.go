package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	q := `
SELECT id, shop_name, logo_url, is_website_created, website_url, updated_at
FROM users
WHERE id = $1;
`
	var u User
	err := s.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.ShopName, &u.LogoURL, &u.IsWebsiteCreated, &u.WebsiteURL, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// MarkWebsiteCreated merges the deployment result into the user row, creating it if needed.
func (s *Store) MarkWebsiteCreated(ctx context.Context, id, websiteURL string) error {
	q := `
INSERT INTO users (id, is_website_created, website_url)
VALUES ($1, TRUE, $2)
ON CONFLICT (id) DO UPDATE
SET is_website_created = TRUE,
    website_url = EXCLUDED.website_url,
    updated_at = now();
`
	_, err := s.db.Exec(ctx, q, id, websiteURL)
	return err
}
