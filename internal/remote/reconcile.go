package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/metrics"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/notify"
)

// Store is the storage an entity type needs for reconciliation. The
// per-entity repositories implement it.
type Store[T models.Entity] interface {
	FindByKey(ctx context.Context, key models.Key) (T, error)
	Insert(ctx context.Context, e T) error
	Update(ctx context.Context, e T) error
}

// StoreFunc binds a Store to a connection or transaction.
type StoreFunc[T models.Entity] func(db dbx.DBTX) Store[T]

// Archiver keeps raw payload copies.
type Archiver interface {
	Store(ctx context.Context, entity string, key models.Key, payload []byte) error
}

// Reconciler merges freshly parsed entities into storage by natural key.
type Reconciler[T models.Entity] struct {
	db     *sql.DB
	entity string
	store  StoreFunc[T]
	locks  *keyLock
	log    logging.Logger

	notifier      notify.Notifier
	archiver      Archiver
	beforePersist func(ctx context.Context, e T) error
	substitute    func(old, fresh T)
}

type ReconcilerOption[T models.Entity] func(*Reconciler[T])

func WithNotifier[T models.Entity](n notify.Notifier) ReconcilerOption[T] {
	return func(r *Reconciler[T]) { r.notifier = n }
}

func WithArchiver[T models.Entity](a Archiver) ReconcilerOption[T] {
	return func(r *Reconciler[T]) { r.archiver = a }
}

// WithBeforePersist runs fn ahead of every upsert, outside its transaction.
// Use it to persist related records first.
func WithBeforePersist[T models.Entity](fn func(ctx context.Context, e T) error) ReconcilerOption[T] {
	return func(r *Reconciler[T]) { r.beforePersist = fn }
}

// WithSubstitute copies local-only state from the stored record onto a
// fresh instance after the storage identity has been transplanted. It is
// not called when e already is the stored row.
func WithSubstitute[T models.Entity](fn func(old, fresh T)) ReconcilerOption[T] {
	return func(r *Reconciler[T]) { r.substitute = fn }
}

func WithReconcilerLogger[T models.Entity](l logging.Logger) ReconcilerOption[T] {
	return func(r *Reconciler[T]) { r.log = l }
}

func NewReconciler[T models.Entity](db *sql.DB, entity string, store StoreFunc[T], opts ...ReconcilerOption[T]) *Reconciler[T] {
	r := &Reconciler[T]{
		db:       db,
		entity:   entity,
		store:    store,
		locks:    newKeyLock(),
		log:      logging.NewNopLogger(),
		notifier: notify.Discard{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Entity is the entity name used in logs, metrics and events.
func (r *Reconciler[T]) Entity() string { return r.entity }

// Find looks a stored record up by natural key.
func (r *Reconciler[T]) Find(ctx context.Context, key models.Key) (T, error) {
	return r.store(r.db).FindByKey(ctx, key)
}

// Reconcile persists e, updating the stored record with the same natural
// key when there is one. The returned flag reports an insert.
func (r *Reconciler[T]) Reconcile(ctx context.Context, e T) (T, bool, error) {
	if r.beforePersist != nil {
		if err := r.beforePersist(ctx, e); err != nil {
			return e, false, fmt.Errorf("%s: before persist: %w", r.entity, err)
		}
	}

	key, ok := e.NaturalKey()
	if !ok {
		created := !e.Base().Persisted()
		if err := r.Save(ctx, e); err != nil {
			metrics.RecordsReconciled.WithLabelValues(r.entity, "error").Inc()
			return e, false, fmt.Errorf("%s: %w", r.entity, err)
		}
		r.log.Debug(ctx, "stored keyless record", "entity", r.entity, "local_id", e.Base().LocalID)
		r.after(ctx, e, nil, created)
		return e, created, nil
	}

	unlock := r.locks.Lock(key.String())
	defer unlock()

	created, err := r.upsert(ctx, e, key, false)
	if err != nil && dbx.IsUniqueViolation(err) {
		r.log.Warn(ctx, "natural key taken concurrently, retrying as update", "entity", r.entity, "key", key.String())
		created, err = r.upsert(ctx, e, key, true)
		if err == nil {
			metrics.RecordsReconciled.WithLabelValues(r.entity, "recovered").Inc()
		}
	}
	if err != nil {
		metrics.RecordsReconciled.WithLabelValues(r.entity, "error").Inc()
		return e, false, fmt.Errorf("%s %s: %w", r.entity, key, err)
	}

	r.after(ctx, e, key, created)
	return e, created, nil
}

// upsert runs one lookup-transplant-persist sequence in its own
// transaction. With updateOnly a missing row is an error.
func (r *Reconciler[T]) upsert(ctx context.Context, e T, key models.Key, updateOnly bool) (created bool, err error) {
	base := e.Base()
	prevID := base.LocalID

	err = dbx.WithTx(ctx, r.db, "reconcile "+r.entity, func(ctx context.Context, tx dbx.DBTX) error {
		s := r.store(tx)

		old, err := s.FindByKey(ctx, key)
		switch {
		case err == nil:
			base.LocalID = old.Base().LocalID
			// A record saved back onto its own row keeps its local state.
			if r.substitute != nil && prevID != base.LocalID {
				r.substitute(old, e)
			}
			return s.Update(ctx, e)
		case errors.Is(err, common.ErrorNotFound) && !updateOnly:
			base.LocalID = 0
			created = true
			return s.Insert(ctx, e)
		default:
			return err
		}
	})
	if err != nil {
		base.LocalID = prevID
		return false, err
	}
	return created, nil
}

func (r *Reconciler[T]) after(ctx context.Context, e T, key models.Key, created bool) {
	result := "updated"
	if created {
		result = "created"
	}
	metrics.RecordsReconciled.WithLabelValues(r.entity, result).Inc()

	ev := notify.Event{
		Entity:    r.entity,
		LocalID:   e.Base().LocalID,
		RemoteKey: key.String(),
		Created:   created,
		Record:    e,
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.log.Warn(ctx, "sync notification failed", "entity", r.entity, "error", err)
	}

	if r.archiver == nil || key == nil {
		return
	}
	if keeper, ok := any(e).(models.PayloadKeeper); ok && len(keeper.Raw()) > 0 {
		if err := r.archiver.Store(ctx, r.entity, key, keeper.Raw()); err != nil {
			r.log.Warn(ctx, "raw payload archive failed", "entity", r.entity, "key", key.String(), "error", err)
		}
	}
}

// Save persists e by storage identity only, without natural-key lookup.
func (r *Reconciler[T]) Save(ctx context.Context, e T) error {
	insert := !e.Base().Persisted()
	err := dbx.WithTx(ctx, r.db, "save "+r.entity, func(ctx context.Context, tx dbx.DBTX) error {
		if insert {
			return r.store(tx).Insert(ctx, e)
		}
		return r.store(tx).Update(ctx, e)
	})
	if err != nil && insert {
		e.Base().LocalID = 0
	}
	return err
}
