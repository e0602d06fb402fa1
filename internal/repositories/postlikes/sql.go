// Package postlikes stores the post to user "likes" association.
package postlikes

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/dbx"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

// Replace is not atomic on its own; run it inside dbx.WithTx.
func (r *SQLRepository) Replace(ctx context.Context, postID int64, userIDs []int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM vk_post_likes WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query :=
		`INSERT INTO vk_post_likes (post_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `
	for _, id := range userIDs {
		if _, err := r.db.ExecContext(ctx, query, postID, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) ListUserIDs(ctx context.Context, postID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM vk_post_likes WHERE post_id = $1 ORDER BY user_id`, postID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}
