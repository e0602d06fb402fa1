// Package groups stores mirrored communities.
package groups

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

func (r *SQLRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*models.Group, error) {
	query :=
		`SELECT id, remote_id, name, screen_name, type, is_closed, members_count, raw_payload, fetched_at
		 FROM vk_groups
		 WHERE remote_id = $1
		 `

	g := &models.Group{}
	var fetched sql.NullTime
	err := r.db.QueryRowContext(ctx, query, remoteID).Scan(&g.LocalID, &g.RemoteID, &g.Name, &g.ScreenName,
		&g.Type, &g.IsClosed, &g.MembersCount, &g.RawPayload, &fetched)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.FetchedAt = dbx.TimePtr(fetched)

	return g, nil
}

func (r *SQLRepository) FindByKey(ctx context.Context, key models.Key) (*models.Group, error) {
	id, ok := models.KeyInt(key, 0)
	if !ok {
		return nil, fmt.Errorf("group key %v: %w", key, common.ErrorValidation)
	}
	return r.GetByRemoteID(ctx, id)
}

func (r *SQLRepository) Insert(ctx context.Context, g *models.Group) error {
	query :=
		`INSERT INTO vk_groups (remote_id, name, screen_name, type, is_closed, members_count, raw_payload, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, g.RemoteID, g.Name, g.ScreenName, g.Type, g.IsClosed,
		g.MembersCount, g.RawPayload, dbx.NullTime(g.FetchedAt)).Scan(&g.LocalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, g *models.Group) error {
	query :=
		`UPDATE vk_groups SET remote_id = $2, name = $3, screen_name = $4, type = $5, is_closed = $6,
		 members_count = $7, raw_payload = $8, fetched_at = $9
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, g.LocalID, g.RemoteID, g.Name, g.ScreenName, g.Type,
		g.IsClosed, g.MembersCount, g.RawPayload, dbx.NullTime(g.FetchedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

func (r *SQLRepository) GetOrCreate(ctx context.Context, remoteID int64) (*models.Group, error) {
	query :=
		`INSERT INTO vk_groups (remote_id) VALUES ($1)
		 ON CONFLICT (remote_id) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, remoteID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.GetByRemoteID(ctx, remoteID)
}
