package posts

import (
	"context"

	"github.com/dmitrijs2005/vksync/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	FindByKey(ctx context.Context, key models.Key) (*models.Post, error)
	Insert(ctx context.Context, p *models.Post) error
	Update(ctx context.Context, p *models.Post) error
	// ListByOwner returns the non-archived posts of a wall, newest first.
	ListByOwner(ctx context.Context, owner models.Ref, limit int) ([]*models.Post, error)
}
