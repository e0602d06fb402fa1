// Package accesstokens stores remote API credentials.
package accesstokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, t *models.AccessToken) (*models.AccessToken, error) {
	query :=
		`INSERT INTO access_tokens (provider, tag, token, active, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id
		 `

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, query, t.Provider, t.Tag, t.Token, t.Active, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *SQLRepository) ListActive(ctx context.Context, provider, tag string) ([]models.AccessToken, error) {
	query :=
		`SELECT id, provider, tag, token, active, created_at FROM access_tokens
		 WHERE provider = $1 AND active = $2 AND ($3 = '' OR tag = $3)
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, provider, true, tag)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.AccessToken
	for rows.Next() {
		var t models.AccessToken
		if err := rows.Scan(&t.ID, &t.Provider, &t.Tag, &t.Token, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET active = $2 WHERE id = $1`, id, false)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}
