package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/repositories/repomanager"
)

// OwnerResolver maps owner and author references to stored rows, creating a
// bare user or group when the remote id has not been seen yet.
type OwnerResolver struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewOwnerResolver(db *sql.DB, repos repomanager.RepositoryManager) *OwnerResolver {
	return &OwnerResolver{db: db, repos: repos}
}

func (o *OwnerResolver) ResolveRef(ctx context.Context, ref models.Ref) (models.Ref, error) {
	switch ref.Kind {
	case models.RefUser:
		u, err := o.repos.Users(o.db).GetOrCreate(ctx, ref.RemoteID)
		if err != nil {
			return ref, fmt.Errorf("resolve %s: %w", ref, err)
		}
		ref.LocalID = u.LocalID
	case models.RefGroup:
		g, err := o.repos.Groups(o.db).GetOrCreate(ctx, ref.RemoteID)
		if err != nil {
			return ref, fmt.Errorf("resolve %s: %w", ref, err)
		}
		ref.LocalID = g.LocalID
	default:
		return ref, models.ErrInvalidRef
	}
	return ref, nil
}
