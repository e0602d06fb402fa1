package models

import (
	"errors"
	"fmt"
)

// RefKind tells which table an owner or author reference points to.
type RefKind int8

const (
	RefNone RefKind = iota
	RefUser
	RefGroup
)

func (k RefKind) String() string {
	switch k {
	case RefUser:
		return "user"
	case RefGroup:
		return "group"
	default:
		return "none"
	}
}

// ErrInvalidRef is returned for the signed id 0, which names neither a user
// nor a group.
var ErrInvalidRef = errors.New("owner id must not be zero")

// Ref points at a user or a group. On the wire it is a signed integer:
// positive ids are users, negative ids are groups.
type Ref struct {
	Kind     RefKind
	RemoteID int64
	// LocalID is filled once the referenced record is resolved in storage.
	LocalID int64
}

// RefFromSigned decodes the wire encoding.
func RefFromSigned(id int64) (Ref, error) {
	switch {
	case id > 0:
		return Ref{Kind: RefUser, RemoteID: id}, nil
	case id < 0:
		return Ref{Kind: RefGroup, RemoteID: -id}, nil
	default:
		return Ref{}, ErrInvalidRef
	}
}

// Signed returns the wire encoding, 0 for an empty ref.
func (r Ref) Signed() int64 {
	switch r.Kind {
	case RefUser:
		return r.RemoteID
	case RefGroup:
		return -r.RemoteID
	default:
		return 0
	}
}

func (r Ref) IsZero() bool { return r.Kind == RefNone || r.RemoteID == 0 }

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.RemoteID)
}
