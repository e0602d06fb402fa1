package postlikes_test

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_Replace(t *testing.T) {
	db, rm := repotest.Open(t)
	ctx := context.Background()

	p := &models.Post{Remote: models.Remote{RemoteID: 1}, Owner: models.Ref{Kind: models.RefUser, RemoteID: 1}}
	require.NoError(t, rm.Posts(db).Insert(ctx, p))

	var ids []int64
	for _, rid := range []int64{10, 11, 12} {
		u, err := rm.Users(db).GetOrCreate(ctx, rid)
		require.NoError(t, err)
		ids = append(ids, u.LocalID)
	}

	require.NoError(t, dbx.WithTx(ctx, db, "replace likes", func(ctx context.Context, tx dbx.DBTX) error {
		return rm.PostLikes(tx).Replace(ctx, p.LocalID, ids)
	}))
	got, err := rm.PostLikes(db).ListUserIDs(ctx, p.LocalID)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	require.NoError(t, rm.PostLikes(db).Replace(ctx, p.LocalID, []int64{ids[1], ids[1]}))
	got, err = rm.PostLikes(db).ListUserIDs(ctx, p.LocalID)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1]}, got)
}
