// Package users stores mirrored user profiles.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/models"
)

const selectUser = `SELECT u.id, u.remote_id, u.first_name, u.last_name, u.screen_name, u.sex,
		 u.birth_date, u.followers_count, u.photo, u.lists, u.raw_payload, u.fetched_at,
		 c.id, c.remote_id, c.title
		 FROM vk_users u LEFT JOIN vk_cities c ON c.id = u.city_id
		 `

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	var (
		birth, fetched  sql.NullTime
		cityID, cityRID sql.NullInt64
		cityTitle       sql.NullString
	)
	err := s.Scan(&u.LocalID, &u.RemoteID, &u.FirstName, &u.LastName, &u.ScreenName, &u.Sex,
		&birth, &u.FollowersCount, &u.Photo, &u.Lists, &u.RawPayload, &fetched,
		&cityID, &cityRID, &cityTitle)
	if err != nil {
		return nil, err
	}
	u.BirthDate = dbx.TimePtr(birth)
	u.FetchedAt = dbx.TimePtr(fetched)
	if cityID.Valid {
		u.City = &models.City{Remote: models.Remote{LocalID: cityID.Int64, RemoteID: cityRID.Int64}, Title: cityTitle.String}
	}
	return u, nil
}

func (r *SQLRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+`WHERE u.remote_id = $1`, remoteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) FindByKey(ctx context.Context, key models.Key) (*models.User, error) {
	id, ok := models.KeyInt(key, 0)
	if !ok {
		return nil, fmt.Errorf("user key %v: %w", key, common.ErrorValidation)
	}
	return r.GetByRemoteID(ctx, id)
}

func cityID(u *models.User) sql.NullInt64 {
	if u.City == nil {
		return sql.NullInt64{}
	}
	return dbx.NullID(u.City.LocalID)
}

func (r *SQLRepository) Insert(ctx context.Context, u *models.User) error {
	query :=
		`INSERT INTO vk_users (remote_id, first_name, last_name, screen_name, sex, birth_date,
		 city_id, followers_count, photo, lists, raw_payload, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		u.RemoteID, u.FirstName, u.LastName, u.ScreenName, u.Sex, dbx.NullTime(u.BirthDate),
		cityID(u), u.FollowersCount, u.Photo, u.Lists, u.RawPayload, dbx.NullTime(u.FetchedAt)).Scan(&u.LocalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, u *models.User) error {
	query :=
		`UPDATE vk_users SET remote_id = $2, first_name = $3, last_name = $4, screen_name = $5,
		 sex = $6, birth_date = $7, city_id = $8, followers_count = $9, photo = $10, lists = $11,
		 raw_payload = $12, fetched_at = $13
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, u.LocalID,
		u.RemoteID, u.FirstName, u.LastName, u.ScreenName, u.Sex, dbx.NullTime(u.BirthDate),
		cityID(u), u.FollowersCount, u.Photo, u.Lists, u.RawPayload, dbx.NullTime(u.FetchedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

func (r *SQLRepository) GetOrCreate(ctx context.Context, remoteID int64) (*models.User, error) {
	query :=
		`INSERT INTO vk_users (remote_id) VALUES ($1)
		 ON CONFLICT (remote_id) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, remoteID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.GetByRemoteID(ctx, remoteID)
}

// ListByIDs returns users by local id, ordered by id.
func (r *SQLRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, selectUser+`WHERE u.id IN (`+strings.Join(marks, ", ")+`) ORDER BY u.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
