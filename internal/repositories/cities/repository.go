package cities

import (
	"context"

	"github.com/dmitrijs2005/vksync/internal/models"
)

type Repository interface {
	GetByRemoteID(ctx context.Context, remoteID int64) (*models.City, error)
	FindByKey(ctx context.Context, key models.Key) (*models.City, error)
	Insert(ctx context.Context, c *models.City) error
	Update(ctx context.Context, c *models.City) error
}
