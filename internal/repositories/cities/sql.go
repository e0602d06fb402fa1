// Package cities stores the city records nested in user profiles.
package cities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*models.City, error) {
	query :=
		`SELECT id, remote_id, title, fetched_at FROM vk_cities
		 WHERE remote_id = $1
		 `

	c := &models.City{}
	var fetched sql.NullTime
	err := r.db.QueryRowContext(ctx, query, remoteID).Scan(&c.LocalID, &c.RemoteID, &c.Title, &fetched)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.FetchedAt = dbx.TimePtr(fetched)

	return c, nil
}

func (r *SQLRepository) FindByKey(ctx context.Context, key models.Key) (*models.City, error) {
	id, ok := models.KeyInt(key, 0)
	if !ok {
		return nil, fmt.Errorf("city key %v: %w", key, common.ErrorValidation)
	}
	return r.GetByRemoteID(ctx, id)
}

func (r *SQLRepository) Insert(ctx context.Context, c *models.City) error {
	query :=
		`INSERT INTO vk_cities (remote_id, title, fetched_at)
		 VALUES ($1, $2, $3)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, c.RemoteID, c.Title, dbx.NullTime(c.FetchedAt)).Scan(&c.LocalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, c *models.City) error {
	query :=
		`UPDATE vk_cities SET remote_id = $2, title = $3, fetched_at = $4
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, c.LocalID, c.RemoteID, c.Title, dbx.NullTime(c.FetchedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}
