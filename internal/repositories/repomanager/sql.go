// Package repomanager provides the RepositoryManager for the SQL backends,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/migrations"
	"github.com/dmitrijs2005/vksync/internal/repositories/accesstokens"
	"github.com/dmitrijs2005/vksync/internal/repositories/cities"
	"github.com/dmitrijs2005/vksync/internal/repositories/groups"
	"github.com/dmitrijs2005/vksync/internal/repositories/postlikes"
	"github.com/dmitrijs2005/vksync/internal/repositories/posts"
	"github.com/dmitrijs2005/vksync/internal/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends repositories for one dialect. The queries are
// shared; only migrations differ per dialect.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db)
}

func (m *SQLRepositoryManager) Groups(db dbx.DBTX) groups.Repository {
	return groups.NewSQLRepository(db)
}

func (m *SQLRepositoryManager) Cities(db dbx.DBTX) cities.Repository {
	return cities.NewSQLRepository(db)
}

func (m *SQLRepositoryManager) Posts(db dbx.DBTX) posts.Repository {
	return posts.NewSQLRepository(db)
}

func (m *SQLRepositoryManager) PostLikes(db dbx.DBTX) postlikes.Repository {
	return postlikes.NewSQLRepository(db)
}

func (m *SQLRepositoryManager) AccessTokens(db dbx.DBTX) accesstokens.Repository {
	return accesstokens.NewSQLRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (m *SQLRepositoryManager) migrations() (fs.FS, string, string) {
	if m.dialect == dbx.Postgres {
		return migrations.Postgres, "postgres", "pgx"
	}
	return migrations.SQLite, "sqlite", "sqlite3"
}

// RunMigrations sets up goose with the embedded migrations of the dialect
// and runs them against db.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	fsys, dir, gooseDialect := m.migrations()
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return err
	}
	return nil
}

// NewSQLRepositoryManager constructs a RepositoryManager for dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) (RepositoryManager, error) {
	switch dialect {
	case dbx.Postgres, dbx.SQLite:
		return &SQLRepositoryManager{dialect: dialect}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}
