package credentials

import (
	"context"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/models"
)

// TokenStore is the read side of the access token repository.
type TokenStore interface {
	ListActive(ctx context.Context, provider, tag string) ([]models.AccessToken, error)
}

// Refresher runs the upstream authorization flow for a provider and stores
// the resulting tokens.
type Refresher interface {
	Refresh(ctx context.Context, provider string) error
}

// StoreProvider serves credentials persisted in the access_tokens table.
type StoreProvider struct {
	store     TokenStore
	refresher Refresher
}

// NewStoreProvider builds a provider over store. refresher may be nil, in
// which case Refresh reports common.ErrRefreshUnavailable.
func NewStoreProvider(store TokenStore, refresher Refresher) *StoreProvider {
	return &StoreProvider{store: store, refresher: refresher}
}

func (p *StoreProvider) ListActive(ctx context.Context, provider, tag string) ([]Credential, error) {
	tokens, err := p.store.ListActive(ctx, provider, tag)
	if err != nil {
		return nil, err
	}
	out := make([]Credential, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, Credential{ID: t.ID, Provider: t.Provider, Tag: t.Tag, Token: t.Token})
	}
	return out, nil
}

func (p *StoreProvider) Refresh(ctx context.Context, provider string) error {
	if p.refresher == nil {
		return common.ErrRefreshUnavailable
	}
	return p.refresher.Refresh(ctx, provider)
}
