// Package credentials hands out remote API access tokens. The Rotator cycles
// through the credentials of a Provider, skipping ones the caller has marked
// as exhausted, and asks the provider for fresh ones when nothing is left.
package credentials

import "context"

// Credential is an opaque access token plus the metadata used to select it.
type Credential struct {
	ID       int64
	Provider string
	Tag      string
	Token    string
}

// Provider is the credential storage boundary.
type Provider interface {
	// ListActive returns usable credentials for provider in a stable order.
	// An empty tag means any tag. Returning common.ErrNoActiveCredentials is
	// equivalent to returning an empty list.
	ListActive(ctx context.Context, provider, tag string) ([]Credential, error)

	// Refresh obtains new credentials upstream.
	Refresh(ctx context.Context, provider string) error
}

// Set holds credentials excluded for the rest of a call chain, keyed by token.
type Set map[string]struct{}

func NewSet() Set { return Set{} }

func (s Set) Add(c Credential)      { s[c.Token] = struct{}{} }
func (s Set) Has(c Credential) bool { _, ok := s[c.Token]; return ok }
func (s Set) Len() int              { return len(s) }
func (s Set) Clear()                { clear(s) }
