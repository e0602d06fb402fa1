package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageCall struct{ offset, count int }

// source serves ints 0..n-1 and records every request.
type source struct {
	n     int
	calls []pageCall
	// hole makes a request at exactly this offset come back empty.
	hole int
}

func (s *source) fetch(_ context.Context, offset, count int) ([]int, int, error) {
	s.calls = append(s.calls, pageCall{offset, count})
	if s.hole > 0 && offset == s.hole {
		return nil, 0, nil
	}
	var out []int
	for i := offset; i < s.n && len(out) < count; i++ {
		out = append(out, i)
	}
	return out, len(out), nil
}

// filtered serves the same pages as source but drops the records skip
// matches, as the parser does with records it cannot store.
func (s *source) filtered(skip func(int) bool) PageFunc[int] {
	return func(ctx context.Context, offset, count int) ([]int, int, error) {
		page, returned, err := s.fetch(ctx, offset, count)
		var kept []int
		for _, v := range page {
			if !skip(v) {
				kept = append(kept, v)
			}
		}
		return kept, returned, err
	}
}

func TestFetchAll_Completeness(t *testing.T) {
	tests := []struct {
		name      string
		n, size   int
		fixed     bool
		wantCalls int
	}{
		{name: "partial last page", n: 250, size: 100, wantCalls: 4},
		{name: "partial last page fixed count", n: 250, size: 100, fixed: true, wantCalls: 3},
		{name: "exact multiple fixed count", n: 200, size: 100, fixed: true, wantCalls: 3},
		{name: "small pages", n: 7, size: 3, fixed: true, wantCalls: 3},
		{name: "empty", n: 0, size: 50, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &source{n: tt.n}
			got, err := FetchAll(context.Background(), src.fetch, PageOptions[int]{PageSize: tt.size, FixedCount: tt.fixed})
			require.NoError(t, err)

			assert.Len(t, got, tt.n)
			for i, v := range got {
				assert.Equal(t, i, v)
			}
			assert.Len(t, src.calls, tt.wantCalls)
		})
	}
}

func TestFetchAll_SkippedRecordsStillAdvanceOffset(t *testing.T) {
	tests := []struct {
		name      string
		skip      func(int) bool
		want      []int
		wantCalls []pageCall
	}{
		{
			name:      "whole first page skipped",
			skip:      func(v int) bool { return v < 2 },
			want:      []int{2, 3, 4},
			wantCalls: []pageCall{{0, 2}, {2, 2}, {4, 2}, {5, 2}},
		},
		{
			name:      "one record skipped",
			skip:      func(v int) bool { return v == 0 },
			want:      []int{1, 2, 3, 4},
			wantCalls: []pageCall{{0, 2}, {2, 2}, {4, 2}, {5, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &source{n: 5}
			got, err := FetchAll(context.Background(), src.filtered(tt.skip), PageOptions[int]{PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, src.calls)
		})
	}
}

func TestFetchAll_FixedCountUsesReturnedCount(t *testing.T) {
	src := &source{n: 4}
	got, err := FetchAll(context.Background(), src.filtered(func(v int) bool { return v == 1 }),
		PageOptions[int]{PageSize: 2, FixedCount: true})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, got)
	assert.Equal(t, []pageCall{{0, 2}, {2, 2}, {4, 2}}, src.calls)
}

func TestFetchAll_PageSizeCapped(t *testing.T) {
	src := &source{n: 10}
	_, err := FetchAll(context.Background(), src.fetch, PageOptions[int]{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, src.calls[0].count)
}

func TestFetchAll_ExtraCallsPastEarlyEnd(t *testing.T) {
	src := &source{n: 150, hole: 100}
	got, err := FetchAll(context.Background(), src.fetch, PageOptions[int]{PageSize: 100, MaxExtraCalls: 1})
	require.NoError(t, err)

	// Item 100 is lost to the hole; the extra call at 101 picks up the rest.
	assert.Len(t, got, 149)
	assert.Equal(t, []pageCall{{0, 100}, {100, 100}, {101, 100}, {150, 100}}, src.calls)
}

func TestFetchAll_NoExtraCallsByDefault(t *testing.T) {
	src := &source{n: 150, hole: 100}
	got, err := FetchAll(context.Background(), src.fetch, PageOptions[int]{PageSize: 100})
	require.NoError(t, err)
	assert.Len(t, got, 100)
	assert.Len(t, src.calls, 2)
}

func TestFetchAll_StopPredicate(t *testing.T) {
	src := &source{n: 1000}
	got, err := FetchAll(context.Background(), src.fetch, PageOptions[int]{
		PageSize: 10,
		Stop:     func(page []int) bool { return page[len(page)-1] >= 25 },
	})
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.Len(t, src.calls, 3)
}

func TestFetchAll_PageLimit(t *testing.T) {
	calls := 0
	ignoresOffset := func(context.Context, int, int) ([]int, int, error) {
		calls++
		return make([]int, 100), 100, nil
	}
	got, err := FetchAll(context.Background(), ignoresOffset, PageOptions[int]{MaxPages: 3})
	require.ErrorIs(t, err, ErrPageLimit)
	assert.Len(t, got, 300)
	assert.Equal(t, 3, calls)
}

func TestFetchAll_ErrorKeepsCollected(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, offset, _ int) ([]int, int, error) {
		if offset > 0 {
			return nil, 0, boom
		}
		return []int{1, 2}, 2, nil
	}
	got, err := FetchAll(context.Background(), fetch, PageOptions[int]{PageSize: 2})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, got)
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(_ context.Context, offset, count int) ([]int, int, error) {
		cancel()
		return make([]int, count), count, nil
	}
	got, err := FetchAll(ctx, fetch, PageOptions[int]{PageSize: 5})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 5)
}
