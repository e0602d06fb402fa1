// Package posts stores mirrored wall posts, keyed by (owner_id, remote_id).
package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/models"
)

const selectPost = `SELECT id, owner_id, owner_local_id, author_id, author_local_id, remote_id, text, date,
		 comments_count, reposts_count, likes_count, archived, raw_payload, fetched_at
		 FROM vk_posts
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

func scanPost(s scanner) (*models.Post, error) {
	p := &models.Post{}
	var (
		ownerID, authorID       int64
		ownerLocal, authorLocal sql.NullInt64
		date, fetched           sql.NullTime
	)
	err := s.Scan(&p.LocalID, &ownerID, &ownerLocal, &authorID, &authorLocal, &p.RemoteID, &p.Text, &date,
		&p.CommentsCount, &p.RepostsCount, &p.LikesCount, &p.Archived, &p.RawPayload, &fetched)
	if err != nil {
		return nil, err
	}
	p.Owner = refFrom(ownerID, ownerLocal)
	p.Author = refFrom(authorID, authorLocal)
	p.Date = dbx.TimePtr(date)
	p.FetchedAt = dbx.TimePtr(fetched)
	return p, nil
}

func refFrom(signed int64, local sql.NullInt64) models.Ref {
	ref, err := models.RefFromSigned(signed)
	if err != nil {
		return models.Ref{}
	}
	ref.LocalID = local.Int64
	return ref
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, selectPost+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *SQLRepository) FindByKey(ctx context.Context, key models.Key) (*models.Post, error) {
	owner, ok1 := models.KeyInt(key, 0)
	remoteID, ok2 := models.KeyInt(key, 1)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("post key %v: %w", key, common.ErrorValidation)
	}

	p, err := scanPost(r.db.QueryRowContext(ctx, selectPost+`WHERE owner_id = $1 AND remote_id = $2`, owner, remoteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *SQLRepository) Insert(ctx context.Context, p *models.Post) error {
	query :=
		`INSERT INTO vk_posts (owner_id, owner_local_id, author_id, author_local_id, remote_id, text, date,
		 comments_count, reposts_count, likes_count, archived, raw_payload, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		p.Owner.Signed(), dbx.NullID(p.Owner.LocalID), p.Author.Signed(), dbx.NullID(p.Author.LocalID),
		p.RemoteID, p.Text, dbx.NullTime(p.Date), p.CommentsCount, p.RepostsCount, p.LikesCount,
		p.Archived, p.RawPayload, dbx.NullTime(p.FetchedAt)).Scan(&p.LocalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, p *models.Post) error {
	query :=
		`UPDATE vk_posts SET owner_id = $2, owner_local_id = $3, author_id = $4, author_local_id = $5,
		 remote_id = $6, text = $7, date = $8, comments_count = $9, reposts_count = $10,
		 likes_count = $11, archived = $12, raw_payload = $13, fetched_at = $14
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, p.LocalID,
		p.Owner.Signed(), dbx.NullID(p.Owner.LocalID), p.Author.Signed(), dbx.NullID(p.Author.LocalID),
		p.RemoteID, p.Text, dbx.NullTime(p.Date), p.CommentsCount, p.RepostsCount, p.LikesCount,
		p.Archived, p.RawPayload, dbx.NullTime(p.FetchedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

func (r *SQLRepository) ListByOwner(ctx context.Context, owner models.Ref, limit int) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPost+`WHERE owner_id = $1 AND archived = $2 ORDER BY date DESC, remote_id DESC LIMIT $3`,
		owner.Signed(), false, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
