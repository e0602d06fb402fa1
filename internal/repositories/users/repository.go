package users

import (
	"context"

	"github.com/dmitrijs2005/vksync/internal/models"
)

type Repository interface {
	GetByRemoteID(ctx context.Context, remoteID int64) (*models.User, error)
	FindByKey(ctx context.Context, key models.Key) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	// GetOrCreate returns the stored user, inserting a bare row first when
	// none exists.
	GetOrCreate(ctx context.Context, remoteID int64) (*models.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.User, error)
}
