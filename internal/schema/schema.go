// Package schema maps raw remote records onto entity structs. Every entity
// type declares a static table of remote field name to binder; binders
// coerce the raw value and assign it.
package schema

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/goccy/go-json"
)

// DefaultPrimaryKey is the remote name of the identifier field.
const DefaultPrimaryKey = "id"

var (
	// ErrRelatedRecordMissing is returned when a one-to-one field names a
	// remote id that is not stored locally.
	ErrRelatedRecordMissing = errors.New("related record missing")

	// ErrInvalidPrimaryKey is returned when the identifier is not an integer.
	ErrInvalidPrimaryKey = errors.New("invalid primary key")
)

// RefResolver turns a signed owner/author id into a stored reference,
// creating a bare user or group row when needed.
type RefResolver interface {
	ResolveRef(ctx context.Context, ref models.Ref) (models.Ref, error)
}

// Env carries the collaborators binders may need.
type Env struct {
	Refs RefResolver
	Log  logging.Logger
}

func (e Env) logger() logging.Logger {
	if e.Log == nil {
		return logging.NewNopLogger()
	}
	return e.Log
}

// Binder coerces v and assigns it to the entity.
type Binder[T any] func(ctx context.Context, env Env, e T, v any) error

// Fields is the declared remote field table of one entity type.
type Fields[T any] map[string]Binder[T]

// Schema parses raw records into entities of type T.
type Schema[T models.Entity] struct {
	entity     string
	primaryKey string
	fields     Fields[T]
}

func New[T models.Entity](entity string, fields Fields[T]) *Schema[T] {
	return &Schema[T]{entity: entity, primaryKey: DefaultPrimaryKey, fields: fields}
}

// WithPrimaryKey changes the remote identifier field name.
func (s *Schema[T]) WithPrimaryKey(name string) *Schema[T] {
	s.primaryKey = name
	return s
}

// Entity is the entity name used in logs and metrics.
func (s *Schema[T]) Entity() string { return s.entity }

// Parse populates e from rec. Unknown fields are dropped. Only an unusable
// primary key and binder errors (missing related records, unresolvable
// references) fail the parse.
func (s *Schema[T]) Parse(ctx context.Context, env Env, e T, rec map[string]any) error {
	log := env.logger()

	for _, key := range slices.Sorted(maps.Keys(rec)) {
		v := rec[key]

		if key == s.primaryKey {
			id, ok := toInt(v)
			if !ok {
				return fmt.Errorf("%s: %w: %v", s.entity, ErrInvalidPrimaryKey, v)
			}
			e.Base().RemoteID = id
			continue
		}

		bind, ok := s.fields[key]
		if !ok {
			log.Debug(ctx, "dropping undeclared field", "entity", s.entity, "field", key)
			continue
		}
		if err := bind(ctx, env, e, v); err != nil {
			return fmt.Errorf("%s.%s: %w", s.entity, key, err)
		}
	}

	if keeper, ok := any(e).(models.PayloadKeeper); ok {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%s: encode payload: %w", s.entity, err)
		}
		keeper.SetRawPayload(raw)
	}
	return nil
}

// Int assigns an integer. Values that do not convert leave the field as is.
func Int[T any](set func(T, int64)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		if n, ok := toInt(v); ok {
			set(e, n)
		}
		return nil
	}
}

func Float[T any](set func(T, float64)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		if f, ok := toFloat(v); ok {
			set(e, f)
		}
		return nil
	}
}

func Text[T any](set func(T, string)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		set(e, toText(v))
		return nil
	}
}

// Bool treats any non-zero number, "1" and true as true.
func Bool[T any](set func(T, bool)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		if n, ok := toInt(v); ok {
			set(e, n != 0)
		}
		return nil
	}
}

// Timestamp reads Unix seconds; zero, negative and non-numeric values
// become nil.
func Timestamp[T any](set func(T, *time.Time)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		set(e, toTimestamp(v))
		return nil
	}
}

// Date reads a YYYY-MM-DD prefixed string; anything else becomes nil.
func Date[T any](set func(T, *time.Time)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		set(e, toDate(v))
		return nil
	}
}

// Delimited joins a sequence with sep. Other values are stored as text.
func Delimited[T any](sep string, set func(T, string)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		list, ok := v.([]any)
		if !ok {
			set(e, toText(v))
			return nil
		}
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = toText(item)
		}
		set(e, strings.Join(parts, sep))
		return nil
	}
}

// Counter reads the {"count": N} objects the remote uses for likes,
// comments and reposts.
func Counter[T any](set func(T, int64)) Binder[T] {
	return func(_ context.Context, _ Env, e T, v any) error {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		if n, ok := toInt(m["count"]); ok {
			set(e, n)
		}
		return nil
	}
}

// LookupFunc finds a stored record by remote id and returns
// common.ErrorNotFound when there is none.
type LookupFunc[R any] func(ctx context.Context, remoteID int64) (R, error)

// OneToOne binds a related record. An integer is looked up in storage; a
// nested mapping is parsed with related into a fresh, unsaved R. Empty
// values clear the relation.
func OneToOne[T any, R models.Entity](related *Schema[R], newR func() R, lookup LookupFunc[R], set func(T, R)) Binder[T] {
	return func(ctx context.Context, env Env, e T, v any) error {
		var zero R

		if m, ok := v.(map[string]any); ok {
			r := newR()
			if err := related.Parse(ctx, env, r, m); err != nil {
				return err
			}
			set(e, r)
			return nil
		}

		id, ok := toInt(v)
		if !ok || id == 0 {
			set(e, zero)
			return nil
		}
		r, err := lookup(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: %s %d", ErrRelatedRecordMissing, related.entity, id)
			}
			return err
		}
		set(e, r)
		return nil
	}
}

// Ref binds an owner or author given in the signed encoding. The reference
// is resolved through env.Refs when one is configured.
func Ref[T any](set func(T, models.Ref)) Binder[T] {
	return func(ctx context.Context, env Env, e T, v any) error {
		n, ok := toInt(v)
		if !ok {
			return nil
		}
		ref, err := models.RefFromSigned(n)
		if err != nil {
			return err
		}
		if env.Refs != nil {
			if ref, err = env.Refs.ResolveRef(ctx, ref); err != nil {
				return err
			}
		}
		set(e, ref)
		return nil
	}
}
