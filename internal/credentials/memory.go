package credentials

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vksync/internal/common"
)

// RefreshFunc produces replacement credentials for a provider.
type RefreshFunc func(ctx context.Context, provider string) ([]Credential, error)

// MemoryProvider keeps credentials in process, in insertion order.
type MemoryProvider struct {
	mu      sync.Mutex
	creds   []Credential
	refresh RefreshFunc
}

func NewMemoryProvider(creds ...Credential) *MemoryProvider {
	return &MemoryProvider{creds: append([]Credential(nil), creds...)}
}

// OnRefresh installs the upstream refresh hook. Without one Refresh fails
// with common.ErrRefreshUnavailable.
func (m *MemoryProvider) OnRefresh(fn RefreshFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = fn
}

func (m *MemoryProvider) Add(c Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = append(m.creds, c)
}

// Remove drops every credential with the given token.
func (m *MemoryProvider) Remove(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.creds[:0]
	for _, c := range m.creds {
		if c.Token != token {
			kept = append(kept, c)
		}
	}
	m.creds = kept
}

func (m *MemoryProvider) ListActive(_ context.Context, provider, tag string) ([]Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Credential
	for _, c := range m.creds {
		if c.Provider != provider {
			continue
		}
		if tag != "" && c.Tag != tag {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, common.ErrNoActiveCredentials
	}
	return out, nil
}

func (m *MemoryProvider) Refresh(ctx context.Context, provider string) error {
	m.mu.Lock()
	fn := m.refresh
	m.mu.Unlock()

	if fn == nil {
		return common.ErrRefreshUnavailable
	}
	fresh, err := fn(ctx, provider)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.creds[:0]
	for _, c := range m.creds {
		if c.Provider != provider {
			kept = append(kept, c)
		}
	}
	m.creds = append(kept, fresh...)
	return nil
}
