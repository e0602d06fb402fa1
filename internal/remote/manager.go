// Package remote fetches entities from the remote API and reconciles them
// into local storage: method resolution, paging, timeline cut-offs, slug
// lookups and the natural-key upsert.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/metrics"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/schema"
	"github.com/dmitrijs2005/vksync/internal/vkapi"
)

// DefaultAPIVersion applies when neither the call, the method nor the
// manager pins a version.
const DefaultAPIVersion = 5.131

const resolveScreenNameMethod = "utils.resolveScreenName"

var (
	// ErrUnexpectedCount is returned by Refresh when the remote does not
	// return exactly one object.
	ErrUnexpectedCount = errors.New("unexpected number of objects")

	urlPattern = regexp.MustCompile(`^(?:https?://)?vk\.com/([^/\?]+)`)
)

// Caller runs one remote method. *vkapi.Invoker implements it.
type Caller interface {
	Call(ctx context.Context, req vkapi.Request) (any, error)
}

// Method is an entry of a manager's method table. A zero Version defers to
// the manager.
type Method struct {
	Name    string
	Version float64
}

// Definition describes how one entity type maps onto the remote API.
type Definition[T models.Entity] struct {
	Namespace string
	Methods   map[string]Method
	Version   float64
	AccessTag string

	Schema *schema.Schema[T]
	New    func() T

	// SlugPrefix marks numeric slugs such as "id1" or "club1".
	SlugPrefix string
	// ResolveTypes are the resolveScreenName types this entity accepts.
	ResolveTypes []string

	// TimelineDate enables FetchTimeline.
	TimelineDate func(T) *time.Time
	// TimelineForceOrdering sorts fetched records newest first before the
	// cut-off is applied.
	TimelineForceOrdering bool
}

// Manager is the remote side of one entity type.
type Manager[T models.Entity] struct {
	def        Definition[T]
	caller     Caller
	reconciler *Reconciler[T]
	env        schema.Env
	log        logging.Logger
	version    float64
	now        func() time.Time
}

type ManagerOption[T models.Entity] func(*Manager[T])

// WithDefaultVersion replaces DefaultAPIVersion for this manager.
func WithDefaultVersion[T models.Entity](v float64) ManagerOption[T] {
	return func(m *Manager[T]) {
		if v > 0 {
			m.version = v
		}
	}
}

func WithManagerLogger[T models.Entity](l logging.Logger) ManagerOption[T] {
	return func(m *Manager[T]) { m.log = l }
}

func withClock[T models.Entity](now func() time.Time) ManagerOption[T] {
	return func(m *Manager[T]) { m.now = now }
}

func NewManager[T models.Entity](def Definition[T], caller Caller, rec *Reconciler[T], env schema.Env, opts ...ManagerOption[T]) *Manager[T] {
	m := &Manager[T]{
		def:        def,
		caller:     caller,
		reconciler: rec,
		env:        env,
		log:        logging.NewNopLogger(),
		version:    DefaultAPIVersion,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.env.Log == nil {
		m.env.Log = m.log
	}
	return m
}

// Reconciler exposes the storage side of the manager.
func (m *Manager[T]) Reconciler() *Reconciler[T] { return m.reconciler }

// resolve maps a short method name to its full name and effective version.
// A "v" parameter wins over the method table, which wins over the manager.
func (m *Manager[T]) resolve(method string, params url.Values) (string, float64) {
	version := m.def.Version
	if version == 0 {
		version = m.version
	}

	if entry, ok := m.def.Methods[method]; ok {
		method = entry.Name
		if entry.Version != 0 {
			version = entry.Version
		}
	}
	if v := params.Get("v"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			version = f
		}
	}

	if !strings.Contains(method, ".") && m.def.Namespace != "" {
		method = m.def.Namespace + "." + method
	}
	return method, version
}

// APICall runs method and returns the raw response with the version it was
// requested with.
func (m *Manager[T]) APICall(ctx context.Context, method string, params url.Values) (any, float64, error) {
	params = cloneParams(params)
	name, version := m.resolve(method, params)
	params.Set("v", strconv.FormatFloat(version, 'f', -1, 64))

	resp, err := m.caller.Call(ctx, vkapi.Request{Method: name, Params: params, AccessTag: m.def.AccessTag})
	if err != nil {
		return nil, version, err
	}
	return resp, version, nil
}

// Get fetches and parses records without persisting them. Records that
// reference a missing related row are skipped.
func (m *Manager[T]) Get(ctx context.Context, method string, params url.Values) ([]T, error) {
	items, _, err := m.get(ctx, method, params, nil)
	return items, err
}

// get also reports how many records the remote returned before any were
// skipped. Records keep rejects are dropped unparsed.
func (m *Manager[T]) get(ctx context.Context, method string, params url.Values, keep func(vkapi.Record) bool) ([]T, int, error) {
	resp, version, err := m.APICall(ctx, method, params)
	if err != nil {
		return nil, 0, err
	}
	records, err := vkapi.Normalize(resp, version)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", m.def.Schema.Entity(), method, err)
	}

	fetched := m.now().UTC()
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if keep != nil && !keep(rec) {
			continue
		}
		e := m.def.New()
		e.Base().FetchedAt = &fetched

		if err := m.def.Schema.Parse(ctx, m.env, e, rec); err != nil {
			if errors.Is(err, schema.ErrRelatedRecordMissing) {
				m.log.Warn(ctx, "skipping record with missing relation", "entity", m.def.Schema.Entity(), "error", err)
				metrics.RecordsSkipped.WithLabelValues(m.def.Schema.Entity(), "related_missing").Inc()
				continue
			}
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, len(records), nil
}

// Fetch gets records and reconciles each into storage.
func (m *Manager[T]) Fetch(ctx context.Context, method string, params url.Values) ([]T, error) {
	items, err := m.Get(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return m.reconcileAll(ctx, items)
}

func (m *Manager[T]) reconcileAll(ctx context.Context, items []T) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, e := range items {
		saved, _, err := m.reconciler.Reconcile(ctx, e)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// FetchPage fetches count records starting at offset.
func (m *Manager[T]) FetchPage(ctx context.Context, method string, params url.Values, offset, count int) ([]T, error) {
	items, _, err := m.fetchPage(ctx, method, params, offset, count, nil)
	return items, err
}

func (m *Manager[T]) fetchPage(ctx context.Context, method string, params url.Values, offset, count int, keep func(vkapi.Record) bool) ([]T, int, error) {
	if count <= 0 || count > MaxPageSize {
		return nil, 0, fmt.Errorf("count must be within 1..%d, got %d: %w", MaxPageSize, count, common.ErrorValidation)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("offset must not be negative: %w", common.ErrorValidation)
	}
	params = cloneParams(params)
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))

	items, returned, err := m.get(ctx, method, params, keep)
	if err != nil {
		return nil, 0, err
	}
	saved, err := m.reconcileAll(ctx, items)
	return saved, returned, err
}

// FetchAll pages through method until the remote runs out of records.
// Records skipped while parsing or rejected by opts.Keep still count
// towards the offset.
func (m *Manager[T]) FetchAll(ctx context.Context, method string, params url.Values, opts PageOptions[T]) ([]T, error) {
	return FetchAll(ctx, func(ctx context.Context, offset, count int) ([]T, int, error) {
		return m.fetchPage(ctx, method, params, offset, count, opts.Keep)
	}, opts)
}

// TimelineOptions bound a timeline fetch. Records dated before After end
// the run; records dated after Before are skipped.
type TimelineOptions struct {
	After  *time.Time
	Before *time.Time
}

// FetchTimeline fetches date-ordered records (newest first) and reconciles
// the ones inside the window.
func (m *Manager[T]) FetchTimeline(ctx context.Context, method string, params url.Values, opts TimelineOptions) ([]T, error) {
	if m.def.TimelineDate == nil {
		return nil, fmt.Errorf("%s has no timeline: %w", m.def.Schema.Entity(), common.ErrorValidation)
	}
	if opts.After != nil && opts.Before != nil && opts.After.After(*opts.Before) {
		return nil, fmt.Errorf("after %s is later than before %s: %w", opts.After, opts.Before, common.ErrorValidation)
	}

	items, err := m.Get(ctx, method, params)
	if err != nil {
		return nil, err
	}

	if m.def.TimelineForceOrdering {
		slices.SortStableFunc(items, func(a, b T) int {
			return compareDatesDesc(m.def.TimelineDate(a), m.def.TimelineDate(b))
		})
	}

	keep := make([]T, 0, len(items))
	for _, e := range items {
		if d := m.def.TimelineDate(e); d != nil {
			if opts.After != nil && opts.After.After(*d) {
				break
			}
			if opts.Before != nil && opts.Before.Before(*d) {
				continue
			}
		}
		keep = append(keep, e)
	}
	return m.reconcileAll(ctx, keep)
}

func compareDatesDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}

// GetByURL accepts "vk.com/<slug>" with or without scheme.
func (m *Manager[T]) GetByURL(ctx context.Context, rawURL string) (T, error) {
	var zero T
	match := urlPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return zero, fmt.Errorf("url %q does not start with vk.com/: %w", rawURL, common.ErrorValidation)
	}
	return m.GetBySlug(ctx, match[1])
}

// GetBySlug returns the stored record for slug with its screen name set, or
// an unsaved one carrying only the remote id and screen name. Slugs of the
// form <prefix><digits> are decoded locally; others go through
// resolveScreenName.
func (m *Manager[T]) GetBySlug(ctx context.Context, slug string) (T, error) {
	var zero T

	remoteID, ok := m.slugID(slug)
	if !ok {
		id, err := m.resolveScreenName(ctx, slug)
		if err != nil {
			return zero, err
		}
		remoteID = id
	}

	e, err := m.reconciler.Find(ctx, models.Key{remoteID})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorNotFound):
		e = m.def.New()
		e.Base().RemoteID = remoteID
	default:
		return zero, err
	}
	if named, ok := any(e).(models.ScreenNamed); ok {
		named.SetScreenName(slug)
	}
	return e, nil
}

func (m *Manager[T]) slugID(slug string) (int64, bool) {
	p := m.def.SlugPrefix
	if p == "" || !strings.HasPrefix(slug, p) {
		return 0, false
	}
	digits := slug[len(p):]
	if digits == "" || strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	return id, err == nil
}

func (m *Manager[T]) resolveScreenName(ctx context.Context, slug string) (int64, error) {
	resp, _, err := m.APICall(ctx, resolveScreenNameMethod, url.Values{"screen_name": {slug}})
	if err != nil {
		m.log.Error(ctx, "resolveScreenName failed", "slug", slug, "error", err)
		return 0, err
	}

	obj, ok := resp.(map[string]any)
	if !ok {
		// An unknown screen name comes back as an empty list.
		if list, isList := resp.([]any); isList && len(list) == 0 {
			return 0, fmt.Errorf("screen name %q: %w", slug, common.ErrorNotFound)
		}
		return 0, &vkapi.MalformedError{Kind: vkapi.NotRecord, Value: resp}
	}

	typ, _ := obj["type"].(string)
	if !slices.Contains(m.def.ResolveTypes, typ) {
		return 0, fmt.Errorf("%w: %q resolves to %q, want one of %v", vkapi.ErrWrongResponseType, slug, typ, m.def.ResolveTypes)
	}

	id, err := strconv.ParseInt(fmt.Sprint(obj["object_id"]), 10, 64)
	if err != nil {
		m.log.Error(ctx, "resolveScreenName returned no object id", "slug", slug, "response", obj)
		return 0, &vkapi.MalformedError{Kind: vkapi.NotRecord, Value: resp}
	}
	return id, nil
}

// Refreshable entities know the call that returns them alone.
type Refreshable interface {
	RefreshRequest() (method string, params url.Values)
}

// Refresh re-fetches e and returns the reconciled copy.
func (m *Manager[T]) Refresh(ctx context.Context, e T) (T, error) {
	var zero T
	r, ok := any(e).(Refreshable)
	if !ok {
		return zero, fmt.Errorf("%s cannot be refreshed: %w", m.def.Schema.Entity(), common.ErrorValidation)
	}
	method, params := r.RefreshRequest()

	items, err := m.Fetch(ctx, method, params)
	if err != nil {
		return zero, err
	}
	if len(items) != 1 {
		return zero, fmt.Errorf("%w: %s refresh returned %d", ErrUnexpectedCount, m.def.Schema.Entity(), len(items))
	}
	return items[0], nil
}

func cloneParams(p url.Values) url.Values {
	out := make(url.Values, len(p)+3)
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}
