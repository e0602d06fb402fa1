package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/repositories/repotest"
	"github.com/dmitrijs2005/vksync/internal/schema"
	"github.com/dmitrijs2005/vksync/internal/vkapi"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers by full method name with a JSON body.
type fakeCaller struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []vkapi.Request
}

func (f *fakeCaller) Call(_ context.Context, req vkapi.Request) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	if err := f.errs[req.Method]; err != nil {
		return nil, err
	}
	body, ok := f.responses[req.Method]
	if !ok {
		return []any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (f *fakeCaller) last() vkapi.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestManagers(t *testing.T, caller *fakeCaller) (*Managers, Deps) {
	t.Helper()
	db, rm := repotest.Open(t)
	d := Deps{DB: db, Repos: rm, Caller: caller}
	return NewManagers(d), d
}

func TestManager_MethodResolution(t *testing.T) {
	m := NewManager(Definition[*models.Group]{
		Namespace: "groups",
		Methods: map[string]Method{
			"get":     {Name: "getById"},
			"members": {Name: "getMembers", Version: 5.27},
		},
		Version: 5.1,
		Schema:  schema.Groups(),
	}, nil, nil, schema.Env{})

	tests := []struct {
		method      string
		params      url.Values
		wantName    string
		wantVersion float64
	}{
		{method: "get", wantName: "groups.getById", wantVersion: 5.1},
		{method: "members", wantName: "groups.getMembers", wantVersion: 5.27},
		{method: "members", params: url.Values{"v": {"5.131"}}, wantName: "groups.getMembers", wantVersion: 5.131},
		{method: "search", wantName: "groups.search", wantVersion: 5.1},
		{method: "utils.resolveScreenName", wantName: "utils.resolveScreenName", wantVersion: 5.1},
	}
	for _, tt := range tests {
		name, version := m.resolve(tt.method, tt.params)
		assert.Equal(t, tt.wantName, name)
		assert.Equal(t, tt.wantVersion, version)
	}

	bare := NewManager(Definition[*models.Group]{Schema: schema.Groups()}, nil, nil, schema.Env{})
	_, version := bare.resolve("get", nil)
	assert.Equal(t, DefaultAPIVersion, version)

	pinned := NewManager(Definition[*models.Group]{Schema: schema.Groups()}, nil, nil, schema.Env{}, WithDefaultVersion[*models.Group](5.27))
	_, version = pinned.resolve("get", nil)
	assert.Equal(t, 5.27, version)
}

func TestManager_APICallSetsVersionAndTag(t *testing.T) {
	caller := &fakeCaller{}
	m := NewManager(Definition[*models.Group]{Namespace: "groups", AccessTag: "groups", Schema: schema.Groups()}, caller, nil, schema.Env{})

	params := url.Values{"group_id": {"1"}}
	_, version, err := m.APICall(context.Background(), "getById", params)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIVersion, version)

	req := caller.last()
	assert.Equal(t, "groups.getById", req.Method)
	assert.Equal(t, "groups", req.AccessTag)
	assert.Equal(t, "5.131", req.Params.Get("v"))
	assert.Empty(t, params.Get("v"), "caller params must not be mutated")
}

func TestNewManagers_DefaultAccessTag(t *testing.T) {
	caller := &fakeCaller{}
	ms := NewManagers(Deps{Caller: caller, AccessTag: "bulk"})

	for _, call := range []func() error{
		func() error { _, _, err := ms.Users.APICall(context.Background(), "get", nil); return err },
		func() error { _, _, err := ms.Posts.APICall(context.Background(), "get", nil); return err },
	} {
		require.NoError(t, call())
		assert.Equal(t, "bulk", caller.last().AccessTag)
	}
}

func TestManager_FetchUnwrapsItemsAndIsIdempotent(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"groups.search": `{"count":2,"items":[{"id":1,"name":"A"},{"id":"2","name":"B"}]}`,
	}}
	ms, d := newTestManagers(t, caller)
	ctx := context.Background()

	first, err := ms.Groups.Fetch(ctx, "search", url.Values{"q": {"x"}})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.NotNil(t, first[0].FetchedAt)

	again, err := ms.Groups.Fetch(ctx, "search", nil)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, first[1].LocalID, again[1].LocalID)
	assert.Equal(t, 2, countRows(t, d.DB, "vk_groups"))
}

func TestManager_OldVersionKeepsWrapper(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"groups.search": `{"count":2,"items":[{"id":1}]}`,
	}}
	ms, _ := newTestManagers(t, caller)

	// Before items wrapping the mapping itself is the record.
	got, err := ms.Groups.Get(context.Background(), "search", url.Values{"v": {"4.0"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].RemoteID)
}

func TestManager_GetSkipsMissingRelations(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"users.get": `[{"id":1,"city":9},{"id":2,"city":{"id":3,"title":"Tartu"}}]`,
	}}
	ms, d := newTestManagers(t, caller)

	got, err := ms.Users.Fetch(context.Background(), "get", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].RemoteID)
	require.NotNil(t, got[0].City)
	assert.True(t, got[0].City.Persisted())
	assert.Equal(t, 1, countRows(t, d.DB, "vk_cities"))

	// The city is now stored and a bare id resolves.
	caller.responses["users.get"] = `[{"id":1,"city":3}]`
	got, err = ms.Users.Fetch(context.Background(), "get", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Tartu", got[0].City.Title)
}

func TestManager_OwnerAndAuthorResolved(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"wall.get": `{"count":1,"items":[{"id":10,"owner_id":-553,"from_id":117,"text":"hi","date":1500000000}]}`,
	}}
	ms, d := newTestManagers(t, caller)
	ctx := context.Background()

	got, err := ms.Posts.Fetch(ctx, "get", url.Values{"owner_id": {"-553"}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	group, err := d.Repos.Groups(d.DB).GetByRemoteID(ctx, 553)
	require.NoError(t, err)
	user, err := d.Repos.Users(d.DB).GetByRemoteID(ctx, 117)
	require.NoError(t, err)

	assert.Equal(t, group.LocalID, got[0].Owner.LocalID)
	assert.Equal(t, user.LocalID, got[0].Author.LocalID)

	stored, err := d.Repos.Posts(d.DB).FindByKey(ctx, models.Key{int64(-553), int64(10)})
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Text)
}

func TestManager_FetchPageValidation(t *testing.T) {
	ms, _ := newTestManagers(t, &fakeCaller{})
	ctx := context.Background()

	_, err := ms.Groups.FetchPage(ctx, "search", nil, 0, MaxPageSize+1)
	require.ErrorIs(t, err, common.ErrorValidation)
	_, err = ms.Groups.FetchPage(ctx, "search", nil, -1, 10)
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestManager_FetchAllPassesOffset(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"groups.search": `{"count":2,"items":[{"id":1},{"id":2}]}`,
	}}
	ms, _ := newTestManagers(t, caller)

	got, err := ms.Groups.FetchAll(context.Background(), "search", nil, PageOptions[*models.Group]{PageSize: 5, FixedCount: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, caller.calls, 1)
	assert.Equal(t, "0", caller.calls[0].Params.Get("offset"))
	assert.Equal(t, "5", caller.calls[0].Params.Get("count"))
}

// pagedCaller serves a slice of records honouring offset and count.
type pagedCaller struct {
	records []string
	offsets []string
}

func (c *pagedCaller) Call(_ context.Context, req vkapi.Request) (any, error) {
	c.offsets = append(c.offsets, req.Params.Get("offset"))
	offset, _ := strconv.Atoi(req.Params.Get("offset"))
	count, _ := strconv.Atoi(req.Params.Get("count"))

	var page []string
	for i := offset; i < len(c.records) && len(page) < count; i++ {
		page = append(page, c.records[i])
	}
	body := fmt.Sprintf(`{"count":%d,"items":[%s]}`, len(c.records), strings.Join(page, ","))

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	err := dec.Decode(&v)
	return v, err
}

func TestManager_FetchAllSkippedRecordsKeepOffset(t *testing.T) {
	tests := []struct {
		name        string
		records     []string
		wantIDs     []int64
		wantOffsets []string
	}{
		{
			name:        "whole page skipped",
			records:     []string{`{"id":1,"city":99}`, `{"id":2,"city":99}`, `{"id":3}`, `{"id":4}`},
			wantIDs:     []int64{3, 4},
			wantOffsets: []string{"0", "2", "4"},
		},
		{
			name:        "part of a page skipped",
			records:     []string{`{"id":1,"city":99}`, `{"id":2}`, `{"id":3}`, `{"id":4}`},
			wantIDs:     []int64{2, 3, 4},
			wantOffsets: []string{"0", "2", "4"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, rm := repotest.Open(t)
			caller := &pagedCaller{records: tt.records}
			ms := NewManagers(Deps{DB: db, Repos: rm, Caller: caller})

			got, err := ms.Users.FetchAll(context.Background(), "search", nil, PageOptions[*models.User]{PageSize: 2})
			require.NoError(t, err)

			var ids []int64
			for _, u := range got {
				ids = append(ids, u.RemoteID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantOffsets, caller.offsets)
		})
	}
}

func TestManager_FetchTimeline(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		// The pinned post (id 1) is the oldest but comes first.
		"wall.get": `{"items":[
			{"id":1,"owner_id":-5,"date":1000},
			{"id":4,"owner_id":-5,"date":4000},
			{"id":3,"owner_id":-5,"date":3000},
			{"id":2,"owner_id":-5,"date":2000}]}`,
	}}
	ms, _ := newTestManagers(t, caller)
	ctx := context.Background()

	after := time.Unix(1500, 0)
	before := time.Unix(3500, 0)
	got, err := ms.Posts.FetchTimeline(ctx, "get", nil, TimelineOptions{After: &after, Before: &before})
	require.NoError(t, err)

	var ids []int64
	for _, p := range got {
		ids = append(ids, p.RemoteID)
	}
	assert.Equal(t, []int64{3, 2}, ids)

	_, err = ms.Posts.FetchTimeline(ctx, "get", nil, TimelineOptions{After: &before, Before: &after})
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = ms.Groups.FetchTimeline(ctx, "get", nil, TimelineOptions{})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestManager_GetBySlug(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"utils.resolveScreenName": `{"type":"user","object_id":1}`,
	}}
	ms, d := newTestManagers(t, caller)
	ctx := context.Background()

	t.Run("numeric slug decoded locally", func(t *testing.T) {
		u, err := ms.Users.GetBySlug(ctx, "id5")
		require.NoError(t, err)
		assert.Equal(t, int64(5), u.RemoteID)
		assert.Equal(t, "id5", u.ScreenName)
		assert.False(t, u.Persisted())
		assert.Empty(t, caller.calls)
	})

	t.Run("screen name resolved", func(t *testing.T) {
		require.NoError(t, d.Repos.Users(d.DB).Insert(ctx, &models.User{Remote: models.Remote{RemoteID: 1}, FirstName: "Pavel"}))

		u, err := ms.Users.GetBySlug(ctx, "durov")
		require.NoError(t, err)
		assert.True(t, u.Persisted())
		assert.Equal(t, "Pavel", u.FirstName)
		assert.Equal(t, "durov", u.ScreenName)
		assert.Equal(t, "durov", caller.last().Params.Get("screen_name"))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ms.Groups.GetBySlug(ctx, "durov")
		require.ErrorIs(t, err, vkapi.ErrWrongResponseType)
	})

	t.Run("unknown screen name", func(t *testing.T) {
		caller.responses["utils.resolveScreenName"] = `[]`
		_, err := ms.Users.GetBySlug(ctx, "nobody")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("malformed", func(t *testing.T) {
		caller.responses["utils.resolveScreenName"] = `{"type":"user"}`
		_, err := ms.Users.GetBySlug(ctx, "broken")
		require.ErrorIs(t, err, vkapi.ErrMalformedResponse)
	})
}

func TestManager_GetByURL(t *testing.T) {
	ms, _ := newTestManagers(t, &fakeCaller{})
	ctx := context.Background()

	for _, u := range []string{"https://vk.com/club7", "http://vk.com/club7/", "vk.com/club7?w=wall"} {
		g, err := ms.Groups.GetByURL(ctx, u)
		require.NoError(t, err, u)
		assert.Equal(t, int64(7), g.RemoteID, u)
	}

	_, err := ms.Groups.GetByURL(ctx, "https://example.com/club7")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestManager_Refresh(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{
		"groups.getById": `[{"id":7,"name":"Fresh"}]`,
	}}
	ms, _ := newTestManagers(t, caller)
	ctx := context.Background()

	g, err := ms.Groups.Refresh(ctx, &models.Group{Remote: models.Remote{RemoteID: 7}, Name: "Stale"})
	require.NoError(t, err)
	assert.Equal(t, "Fresh", g.Name)
	assert.True(t, g.Persisted())
	assert.Equal(t, "7", caller.last().Params.Get("group_id"))

	caller.responses["groups.getById"] = `[]`
	_, err = ms.Groups.Refresh(ctx, g)
	require.ErrorIs(t, err, ErrUnexpectedCount)

	_, err = ms.Cities.Refresh(ctx, &models.City{})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestManager_CallErrorPropagates(t *testing.T) {
	boom := &vkapi.Error{Code: 15, Message: "access denied", Method: "wall.get"}
	ms, _ := newTestManagers(t, &fakeCaller{errs: map[string]error{"wall.get": boom}})

	_, err := ms.Posts.Fetch(context.Background(), "get", nil)
	require.ErrorIs(t, err, boom)
}
