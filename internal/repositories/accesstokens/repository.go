package accesstokens

import (
	"context"

	"github.com/dmitrijs2005/vksync/internal/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.AccessToken) (*models.AccessToken, error)
	// ListActive returns active tokens of provider ordered by id. An empty
	// tag matches every tag.
	ListActive(ctx context.Context, provider, tag string) ([]models.AccessToken, error)
	Deactivate(ctx context.Context, id int64) error
}
