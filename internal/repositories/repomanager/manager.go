package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/repositories/accesstokens"
	"github.com/dmitrijs2005/vksync/internal/repositories/cities"
	"github.com/dmitrijs2005/vksync/internal/repositories/groups"
	"github.com/dmitrijs2005/vksync/internal/repositories/postlikes"
	"github.com/dmitrijs2005/vksync/internal/repositories/posts"
	"github.com/dmitrijs2005/vksync/internal/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
	Cities(db dbx.DBTX) cities.Repository
	Posts(db dbx.DBTX) posts.Repository
	PostLikes(db dbx.DBTX) postlikes.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
}
