package groups

import (
	"context"

	"github.com/dmitrijs2005/vksync/internal/models"
)

type Repository interface {
	GetByRemoteID(ctx context.Context, remoteID int64) (*models.Group, error)
	FindByKey(ctx context.Context, key models.Key) (*models.Group, error)
	Insert(ctx context.Context, g *models.Group) error
	Update(ctx context.Context, g *models.Group) error
	GetOrCreate(ctx context.Context, remoteID int64) (*models.Group, error)
}
