// Package crud pushes local changes of writable entities to the remote API:
// create on first save, a field-level diff on later saves, and delete or
// restore through the archive flag.
package crud

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/remote"
	"github.com/goccy/go-json"
)

// Writable entities can be created, edited, deleted and restored remotely.
type Writable interface {
	models.Entity
	models.Archivable

	CreateParams() url.Values
	UpdateParams() url.Values
	// FieldsRequiredForUpdate are sent on every update even when unchanged.
	FieldsRequiredForUpdate() []string
	DeleteParams() url.Values
	RestoreParams() url.Values
	RemoteIDFromCreate(resp any) (int64, error)
	RemoteMethods() (create, update, del, restore string)
}

// RemoteWriteError is returned when the remote answers a write with a
// falsy response.
type RemoteWriteError struct {
	Entity   string
	Op       string
	RemoteID int64
	Params   url.Values
	Response any
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote %s of %s %d failed with response %v (params %s)",
		e.Op, e.Entity, e.RemoteID, e.Response, e.Params.Encode())
}

// Syncer saves writable entities locally and, when enabled, remotely.
type Syncer[T Writable] struct {
	manager *remote.Manager[T]
	enabled bool
	log     logging.Logger
}

type Option[T Writable] func(*Syncer[T])

// WithCommitRemote is the global switch; when false no remote write is ever
// issued.
func WithCommitRemote[T Writable](enabled bool) Option[T] {
	return func(s *Syncer[T]) { s.enabled = enabled }
}

func WithLogger[T Writable](l logging.Logger) Option[T] {
	return func(s *Syncer[T]) { s.log = l }
}

func NewSyncer[T Writable](m *remote.Manager[T], opts ...Option[T]) *Syncer[T] {
	s := &Syncer[T]{manager: m, enabled: true, log: logging.NewNopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Syncer[T]) entity() string { return s.manager.Reconciler().Entity() }

// Save persists e. With commitRemote a new record is created remotely first
// and a stored one is updated remotely when its remote fields changed.
func (s *Syncer[T]) Save(ctx context.Context, e T, commitRemote bool) error {
	if commitRemote && s.enabled {
		base := e.Base()
		switch {
		case !base.Persisted() && base.FetchedAt == nil:
			if err := s.create(ctx, e); err != nil {
				return err
			}
		case base.Persisted():
			if err := s.update(ctx, e); err != nil {
				return err
			}
		}
	}

	_, _, err := s.manager.Reconciler().Reconcile(ctx, e)
	return err
}

func (s *Syncer[T]) create(ctx context.Context, e T) error {
	method, _, _, _ := e.RemoteMethods()
	params := e.CreateParams()

	resp, _, err := s.manager.APICall(ctx, method, params)
	if err != nil {
		return err
	}
	id, err := e.RemoteIDFromCreate(resp)
	if err != nil {
		s.log.Error(ctx, "remote create returned no id", "entity", s.entity(), "response", resp)
		return &RemoteWriteError{Entity: s.entity(), Op: "create", Params: params, Response: resp}
	}
	e.Base().RemoteID = id
	s.log.Info(ctx, "remote object created", "entity", s.entity(), "remote_id", id)
	return nil
}

func (s *Syncer[T]) update(ctx context.Context, e T) error {
	key, ok := e.NaturalKey()
	if !ok {
		return nil
	}
	old, err := s.manager.Reconciler().Find(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	params, changed := DiffParams(old.UpdateParams(), e.UpdateParams(), e.FieldsRequiredForUpdate())
	if !changed {
		return nil
	}

	_, method, _, _ := e.RemoteMethods()
	resp, _, err := s.manager.APICall(ctx, method, params)
	if err != nil {
		return err
	}
	if !Truthy(resp) {
		s.log.Error(ctx, "remote update rejected", "entity", s.entity(), "remote_id", e.Base().RemoteID, "response", resp)
		return &RemoteWriteError{Entity: s.entity(), Op: "update", RemoteID: e.Base().RemoteID, Params: params, Response: resp}
	}
	s.log.Info(ctx, "remote object updated", "entity", s.entity(), "remote_id", e.Base().RemoteID, "fields", slices.Sorted(maps.Keys(params)))
	return nil
}

// Delete archives e locally, deleting it remotely first with commitRemote.
// Archived records are left alone.
func (s *Syncer[T]) Delete(ctx context.Context, e T, commitRemote bool) error {
	if e.IsArchived() {
		return nil
	}
	_, _, del, _ := e.RemoteMethods()
	return s.setArchived(ctx, e, commitRemote, "delete", del, e.DeleteParams(), true)
}

// Restore reverses Delete.
func (s *Syncer[T]) Restore(ctx context.Context, e T, commitRemote bool) error {
	if !e.IsArchived() {
		return nil
	}
	_, _, _, restore := e.RemoteMethods()
	return s.setArchived(ctx, e, commitRemote, "restore", restore, e.RestoreParams(), false)
}

func (s *Syncer[T]) setArchived(ctx context.Context, e T, commitRemote bool, op, method string, params url.Values, archived bool) error {
	remoteID := e.Base().RemoteID
	if commitRemote && s.enabled && remoteID != 0 {
		resp, _, err := s.manager.APICall(ctx, method, params)
		if err != nil {
			return err
		}
		if !Truthy(resp) {
			s.log.Error(ctx, "remote "+op+" rejected", "entity", s.entity(), "remote_id", remoteID, "response", resp)
			return &RemoteWriteError{Entity: s.entity(), Op: op, RemoteID: remoteID, Params: params, Response: resp}
		}
		s.log.Info(ctx, "remote "+op+" done", "entity", s.entity(), "remote_id", remoteID)
	}

	e.SetArchived(archived)
	return s.Save(ctx, e, false)
}

// DiffParams returns the entries of fresh that differ from old plus the
// required ones. changed is false when nothing but required fields remain.
func DiffParams(old, fresh url.Values, required []string) (url.Values, bool) {
	out := url.Values{}
	changed := false
	for k, v := range fresh {
		if !slices.Equal(old[k], v) {
			out[k] = v
			changed = true
		}
	}
	for _, k := range required {
		if v, ok := fresh[k]; ok {
			out[k] = v
		}
	}
	return out, changed
}

// Truthy reports whether a write response signals success. Nil, false,
// zero, the empty string and empty collections do not.
func Truthy(resp any) bool {
	switch v := resp.(type) {
	case nil:
		return false
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
