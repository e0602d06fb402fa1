// Package models defines the locally persisted mirrors of remote resources
// and the capability pieces they are assembled from.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Key is a natural-key tuple: the attribute values that identify a record
// on the remote side.
type Key []any

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "_")
}

// Entity is implemented by every synchronized record.
type Entity interface {
	// Base exposes the identity fields shared by all records.
	Base() *Remote
	// NaturalKey returns the remote identity tuple. ok is false when any
	// attribute of the tuple is unset; such a record is keyless.
	NaturalKey() (key Key, ok bool)
}

// Remote carries the identity fields every mirrored record has. Embed it.
type Remote struct {
	// LocalID is assigned by storage on insert and never changes afterwards.
	LocalID int64
	// RemoteID is the identifier issued by the remote service.
	RemoteID int64
	// FetchedAt is the time of the last successful sync, nil until then.
	FetchedAt *time.Time
}

func (r *Remote) Base() *Remote { return r }

// NaturalKey is the single-column key (remote_id). Entities with a composite
// key override it.
func (r *Remote) NaturalKey() (Key, bool) {
	if r.RemoteID == 0 {
		return nil, false
	}
	return Key{r.RemoteID}, true
}

// Persisted reports whether the record has a storage identity.
func (r *Remote) Persisted() bool { return r.LocalID != 0 }

// Payload keeps a verbatim copy of the last raw record. Embed it to opt in.
type Payload struct {
	RawPayload []byte
}

func (p *Payload) SetRawPayload(b []byte) { p.RawPayload = b }
func (p *Payload) Raw() []byte            { return p.RawPayload }

// PayloadKeeper is implemented by entities embedding Payload.
type PayloadKeeper interface {
	SetRawPayload([]byte)
	Raw() []byte
}

// Archive marks records that are never hard-deleted: deletion sets the flag.
type Archive struct {
	Archived bool
}

func (a *Archive) IsArchived() bool      { return a.Archived }
func (a *Archive) SetArchived(flag bool) { a.Archived = flag }

// Archivable is implemented by entities embedding Archive.
type Archivable interface {
	IsArchived() bool
	SetArchived(bool)
}

// Likes is the cached endorsement counter of a likable record. The set of
// endorsing users lives in its own association table.
type Likes struct {
	LikesCount int64
}

func (l *Likes) LikesState() *Likes { return l }

// ScreenNamed is implemented by entities addressable by a slug.
type ScreenNamed interface {
	SetScreenName(string)
}

// KeyInt returns element i of k when it is an integer.
func KeyInt(k Key, i int) (int64, bool) {
	if i < 0 || i >= len(k) {
		return 0, false
	}
	switch v := k[i].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
