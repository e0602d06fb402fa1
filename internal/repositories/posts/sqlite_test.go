package posts_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(owner int64, remoteID int64, date time.Time) *models.Post {
	ref, _ := models.RefFromSigned(owner)
	return &models.Post{Remote: models.Remote{RemoteID: remoteID}, Owner: ref, Date: &date, Text: "hello"}
}

func TestSQLite_CompositeKey(t *testing.T) {
	db, rm := repotest.Open(t)
	ctx := context.Background()
	repo := rm.Posts(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a := post(-553, 10, now)
	a.Author = models.Ref{Kind: models.RefUser, RemoteID: 117, LocalID: 4}
	require.NoError(t, repo.Insert(ctx, a))
	// Same remote id on another wall is a different post.
	require.NoError(t, repo.Insert(ctx, post(117, 10, now)))

	err := repo.Insert(ctx, post(-553, 10, now))
	require.Error(t, err)
	assert.True(t, dbx.IsUniqueViolation(err))

	got, err := repo.FindByKey(ctx, models.Key{int64(-553), int64(10)})
	require.NoError(t, err)
	assert.Equal(t, a.LocalID, got.LocalID)
	assert.Equal(t, models.RefGroup, got.Owner.Kind)
	assert.Equal(t, int64(553), got.Owner.RemoteID)
	assert.Equal(t, models.Ref{Kind: models.RefUser, RemoteID: 117, LocalID: 4}, got.Author)
	assert.True(t, now.Equal(*got.Date))

	_, err = repo.FindByKey(ctx, models.Key{int64(-553), int64(11)})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_UpdateAndListByOwner(t *testing.T) {
	db, rm := repotest.Open(t)
	ctx := context.Background()
	repo := rm.Posts(db)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, repo.Insert(ctx, post(-1, i, base.Add(time.Duration(i)*time.Hour))))
	}

	p, err := repo.FindByKey(ctx, models.Key{int64(-1), int64(2)})
	require.NoError(t, err)
	p.SetArchived(true)
	p.LikesCount = 9
	require.NoError(t, repo.Update(ctx, p))

	byID, err := repo.GetByID(ctx, p.LocalID)
	require.NoError(t, err)
	assert.True(t, byID.IsArchived())
	assert.Equal(t, int64(9), byID.LikesCount)

	owner := models.Ref{Kind: models.RefGroup, RemoteID: 1}
	list, err := repo.ListByOwner(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].RemoteID)
	assert.Equal(t, int64(1), list[1].RemoteID)
}
