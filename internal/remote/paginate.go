package remote

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vksync/internal/metrics"
	"github.com/dmitrijs2005/vksync/internal/vkapi"
)

const (
	// MaxPageSize is the largest count the remote accepts.
	MaxPageSize = 100
	// DefaultMaxPages bounds a pagination run when the remote ignores the
	// offset parameter and keeps returning full pages.
	DefaultMaxPages = 10000
)

// ErrPageLimit is returned with the items collected so far when a run hits
// PageOptions.MaxPages.
var ErrPageLimit = errors.New("page limit reached")

// PageFunc fetches count items starting at offset. returned is the number
// of records the remote sent, which may exceed len(items) when some were
// dropped while parsing.
type PageFunc[T any] func(ctx context.Context, offset, count int) (items []T, returned int, err error)

type PageOptions[T any] struct {
	// PageSize is the count requested per call, capped at MaxPageSize.
	PageSize int
	// FixedCount treats a page shorter than PageSize as the last one.
	FixedCount bool
	// MaxExtraCalls allows that many extra calls, one item past the current
	// offset, after an apparent end. The remote sometimes reports the end
	// one item early.
	MaxExtraCalls int
	// Stop ends the run after a page it returns true for.
	Stop func(page []T) bool
	// MaxPages defaults to DefaultMaxPages.
	MaxPages int
	// Keep drops raw records it returns false for before they are parsed.
	// Only Manager.FetchAll applies it.
	Keep func(rec vkapi.Record) bool
}

// FetchAll pages through fetch sequentially. The offset advances by the
// number of records the remote actually returned for each page.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T], opts PageOptions[T]) ([]T, error) {
	size := opts.PageSize
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var (
		all    []T
		offset int
		extra  int
		kind   = "page"
	)
	for pages := 0; ; pages++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		if pages >= maxPages {
			return all, ErrPageLimit
		}

		page, returned, err := fetch(ctx, offset, size)
		if err != nil {
			return all, err
		}
		metrics.PagesFetched.WithLabelValues(kind).Inc()

		all = append(all, page...)
		offset += returned

		if opts.Stop != nil && opts.Stop(page) {
			return all, nil
		}

		more := returned > 0 && (!opts.FixedCount || returned == size)
		if more {
			kind = "page"
			continue
		}
		if extra >= opts.MaxExtraCalls {
			return all, nil
		}
		extra++
		offset++
		kind = "extra"
	}
}
