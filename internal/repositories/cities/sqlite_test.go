package cities_test

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_Cities(t *testing.T) {
	db, rm := repotest.Open(t)
	ctx := context.Background()
	repo := rm.Cities(db)

	c := &models.City{Remote: models.Remote{RemoteID: 2}, Title: "Riga"}
	require.NoError(t, repo.Insert(ctx, c))

	c.Title = "Rīga"
	require.NoError(t, repo.Update(ctx, c))

	got, err := repo.GetByRemoteID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, c.LocalID, got.LocalID)
	assert.Equal(t, "Rīga", got.Title)

	_, err = repo.GetByRemoteID(ctx, 3)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
