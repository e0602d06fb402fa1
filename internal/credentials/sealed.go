package credentials

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/models"
)

// TokenRepository is the access token repository as used by SealedStore.
type TokenRepository interface {
	TokenStore
	Create(ctx context.Context, t *models.AccessToken) (*models.AccessToken, error)
}

// Cipher seals and opens token values.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// SealedStore encrypts tokens on the way into repo and decrypts them on the
// way out.
type SealedStore struct {
	repo   TokenRepository
	cipher Cipher
}

func NewSealedStore(repo TokenRepository, c Cipher) *SealedStore {
	return &SealedStore{repo: repo, cipher: c}
}

// Create stores a sealed copy of t. t itself keeps the plain token.
func (s *SealedStore) Create(ctx context.Context, t *models.AccessToken) (*models.AccessToken, error) {
	sealed, err := s.cipher.Seal(t.Token)
	if err != nil {
		return nil, fmt.Errorf("seal token: %w", err)
	}

	stored := *t
	stored.Token = sealed
	if _, err := s.repo.Create(ctx, &stored); err != nil {
		return nil, err
	}
	t.ID = stored.ID
	t.CreatedAt = stored.CreatedAt
	return t, nil
}

func (s *SealedStore) ListActive(ctx context.Context, provider, tag string) ([]models.AccessToken, error) {
	tokens, err := s.repo.ListActive(ctx, provider, tag)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		plain, err := s.cipher.Open(tokens[i].Token)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", tokens[i].ID, err)
		}
		tokens[i].Token = plain
	}
	return tokens, nil
}
