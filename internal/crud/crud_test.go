package crud

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/remote"
	"github.com/dmitrijs2005/vksync/internal/repositories/repotest"
	"github.com/dmitrijs2005/vksync/internal/vkapi"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	params url.Values
}

type fakeCaller struct {
	responses map[string]any
	calls     []call
}

func (f *fakeCaller) Call(_ context.Context, req vkapi.Request) (any, error) {
	f.calls = append(f.calls, call{req.Method, req.Params})
	return f.responses[req.Method], nil
}

func setup(t *testing.T, responses map[string]any, opts ...Option[*models.Post]) (*Syncer[*models.Post], *fakeCaller, remote.Deps) {
	t.Helper()
	db, rm := repotest.Open(t)
	caller := &fakeCaller{responses: responses}
	d := remote.Deps{DB: db, Repos: rm, Caller: caller}
	return NewSyncer(remote.NewManagers(d).Posts, opts...), caller, d
}

func newPost() *models.Post {
	return &models.Post{Owner: models.Ref{Kind: models.RefGroup, RemoteID: 5}, Text: "hello"}
}

func TestSave_CreatesRemotely(t *testing.T) {
	s, caller, d := setup(t, map[string]any{"wall.post": map[string]any{"post_id": json.Number("77")}})
	ctx := context.Background()

	p := newPost()
	require.NoError(t, s.Save(ctx, p, true))

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "wall.post", caller.calls[0].method)
	assert.Equal(t, "-5", caller.calls[0].params.Get("owner_id"))
	assert.Equal(t, "hello", caller.calls[0].params.Get("message"))

	assert.Equal(t, int64(77), p.RemoteID)
	stored, err := d.Repos.Posts(d.DB).FindByKey(ctx, models.Key{int64(-5), int64(77)})
	require.NoError(t, err)
	assert.Equal(t, p.LocalID, stored.LocalID)
}

func TestSave_CreateWithoutIDFails(t *testing.T) {
	s, _, _ := setup(t, map[string]any{"wall.post": map[string]any{}})

	err := s.Save(context.Background(), newPost(), true)
	var werr *RemoteWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "create", werr.Op)
}

func TestSave_UpdateSendsOnlyChangedFields(t *testing.T) {
	s, caller, _ := setup(t, map[string]any{
		"wall.post": map[string]any{"post_id": json.Number("77")},
		"wall.edit": json.Number("1"),
	})
	ctx := context.Background()

	p := newPost()
	require.NoError(t, s.Save(ctx, p, true))

	// Unchanged: no remote call.
	require.NoError(t, s.Save(ctx, p, true))
	require.Len(t, caller.calls, 1)

	p.Text = "edited"
	require.NoError(t, s.Save(ctx, p, true))
	require.Len(t, caller.calls, 2)

	edit := caller.calls[1]
	assert.Equal(t, "wall.edit", edit.method)
	assert.Equal(t, "edited", edit.params.Get("message"))
	assert.Equal(t, "77", edit.params.Get("post_id"))
	assert.Equal(t, "-5", edit.params.Get("owner_id"))
}

func TestSave_UpdateRejected(t *testing.T) {
	s, _, _ := setup(t, map[string]any{
		"wall.post": map[string]any{"post_id": json.Number("77")},
		"wall.edit": json.Number("0"),
	})
	ctx := context.Background()

	p := newPost()
	require.NoError(t, s.Save(ctx, p, true))
	p.Text = "edited"

	err := s.Save(ctx, p, true)
	var werr *RemoteWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "update", werr.Op)
	assert.Equal(t, int64(77), werr.RemoteID)
}

func TestSave_GlobalSwitchDisablesRemote(t *testing.T) {
	s, caller, _ := setup(t, nil, WithCommitRemote[*models.Post](false))

	p := newPost()
	require.NoError(t, s.Save(context.Background(), p, true))
	assert.Empty(t, caller.calls)
	assert.True(t, p.Persisted())
}

func TestDeleteAndRestore(t *testing.T) {
	s, caller, d := setup(t, map[string]any{
		"wall.post":    map[string]any{"post_id": json.Number("77")},
		"wall.delete":  json.Number("1"),
		"wall.restore": json.Number("1"),
	})
	ctx := context.Background()

	p := newPost()
	require.NoError(t, s.Save(ctx, p, true))

	require.NoError(t, s.Delete(ctx, p, true))
	assert.True(t, p.Archived)
	stored, err := d.Repos.Posts(d.DB).GetByID(ctx, p.LocalID)
	require.NoError(t, err)
	assert.True(t, stored.Archived)

	// Deleting twice is a no-op.
	require.NoError(t, s.Delete(ctx, p, true))

	require.NoError(t, s.Restore(ctx, p, true))
	assert.False(t, p.Archived)

	var methods []string
	for _, c := range caller.calls {
		methods = append(methods, c.method)
	}
	assert.Equal(t, []string{"wall.post", "wall.delete", "wall.restore"}, methods)
}

func TestDelete_Rejected(t *testing.T) {
	s, _, _ := setup(t, map[string]any{"wall.delete": false})
	p := newPost()
	p.RemoteID = 3

	err := s.Delete(context.Background(), p, true)
	var werr *RemoteWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "delete", werr.Op)
	assert.False(t, p.Archived)
}

func TestDelete_LocalOnly(t *testing.T) {
	s, caller, _ := setup(t, nil)
	p := newPost()
	p.RemoteID = 3

	require.NoError(t, s.Delete(context.Background(), p, false))
	assert.True(t, p.Archived)
	assert.Empty(t, caller.calls)
}

func TestDiffParams(t *testing.T) {
	old := url.Values{"owner_id": {"-5"}, "post_id": {"1"}, "message": {"a"}}

	got, changed := DiffParams(old, url.Values{"owner_id": {"-5"}, "post_id": {"1"}, "message": {"b"}}, []string{"owner_id", "post_id"})
	assert.True(t, changed)
	assert.Equal(t, url.Values{"owner_id": {"-5"}, "post_id": {"1"}, "message": {"b"}}, got)

	_, changed = DiffParams(old, old, []string{"owner_id"})
	assert.False(t, changed)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{json.Number("0"), false},
		{json.Number("1"), true},
		{float64(2), true},
		{"", false},
		{"ok", true},
		{[]any{}, false},
		{map[string]any{"post_id": 1}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.in), "%v", tt.in)
	}
}

func TestRemoteWriteError_Message(t *testing.T) {
	err := error(&RemoteWriteError{Entity: "post", Op: "delete", RemoteID: 3, Params: url.Values{"post_id": {"3"}}, Response: 0})
	assert.Contains(t, err.Error(), "remote delete of post 3")

	var werr *RemoteWriteError
	assert.True(t, errors.As(err, &werr))
}
