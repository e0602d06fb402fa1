package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirArchive_Store(t *testing.T) {
	root := filepath.Join(t.TempDir(), "raw")
	a, err := NewDirArchive(root)
	require.NoError(t, err)
	ctx := context.Background()
	key := models.Key{int64(-553), int64(10)}

	require.NoError(t, a.Store(ctx, "post", key, []byte(`{"id":10}`)))
	require.NoError(t, a.Store(ctx, "post", key, []byte(`{"id":10,"text":"edited"}`)))

	path := a.Path("post", key)
	assert.Equal(t, filepath.Join("post", "-553_10.json"), path[len(a.root)+1:])

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"id":10,"text":"edited"}`, string(got))
}

func TestDirArchive_RejectsBadEntity(t *testing.T) {
	a, err := NewDirArchive(t.TempDir())
	require.NoError(t, err)

	for _, entity := range []string{"../post", "a/b", ".."} {
		assert.Error(t, a.Store(context.Background(), entity, models.Key{int64(1)}, nil), entity)
	}
}
