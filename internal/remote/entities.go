package remote

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/notify"
	"github.com/dmitrijs2005/vksync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/vksync/internal/schema"
)

// Deps are the collaborators shared by every entity manager.
type Deps struct {
	DB       *sql.DB
	Repos    repomanager.RepositoryManager
	Caller   Caller
	Notifier notify.Notifier
	// Archiver is optional.
	Archiver Archiver
	Log      logging.Logger
	// Version overrides DefaultAPIVersion when set.
	Version float64
	// AccessTag selects credentials for definitions that do not name one.
	AccessTag string
}

// Managers holds one manager per mirrored entity type.
type Managers struct {
	Cities *Manager[*models.City]
	Users  *Manager[*models.User]
	Groups *Manager[*models.Group]
	Posts  *Manager[*models.Post]
}

func NewManagers(d Deps) *Managers {
	if d.Log == nil {
		d.Log = logging.NewNopLogger()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Discard{}
	}
	env := schema.Env{Refs: NewOwnerResolver(d.DB, d.Repos), Log: d.Log}

	cities := newManager(d, env, Definition[*models.City]{
		Namespace: "database",
		Methods:   map[string]Method{"get": {Name: "getCitiesById"}},
		Schema:    schema.Cities(),
		New:       func() *models.City { return &models.City{} },
	}, func(db dbx.DBTX) Store[*models.City] { return d.Repos.Cities(db) })

	lookupCity := func(ctx context.Context, id int64) (*models.City, error) {
		return d.Repos.Cities(d.DB).GetByRemoteID(ctx, id)
	}
	users := newManager(d, env, Definition[*models.User]{
		Namespace:    "users",
		Schema:       schema.Users(lookupCity),
		New:          func() *models.User { return &models.User{} },
		SlugPrefix:   "id",
		ResolveTypes: []string{"user"},
	}, func(db dbx.DBTX) Store[*models.User] { return d.Repos.Users(db) },
		WithBeforePersist(func(ctx context.Context, u *models.User) error {
			if u.City == nil || u.City.Persisted() {
				return nil
			}
			_, _, err := cities.Reconciler().Reconcile(ctx, u.City)
			return err
		}))

	groups := newManager(d, env, Definition[*models.Group]{
		Namespace:    "groups",
		Methods:      map[string]Method{"get": {Name: "getById"}},
		Schema:       schema.Groups(),
		New:          func() *models.Group { return &models.Group{} },
		SlugPrefix:   "club",
		ResolveTypes: []string{"group", "page", "event"},
	}, func(db dbx.DBTX) Store[*models.Group] { return d.Repos.Groups(db) })

	posts := newManager(d, env, Definition[*models.Post]{
		Namespace:    "wall",
		Schema:       schema.Posts(),
		New:          func() *models.Post { return &models.Post{} },
		TimelineDate: func(p *models.Post) *time.Time { return p.Date },
		// Pinned posts come first regardless of date.
		TimelineForceOrdering: true,
	}, func(db dbx.DBTX) Store[*models.Post] { return d.Repos.Posts(db) },
		WithSubstitute(func(old, fresh *models.Post) { fresh.Archived = old.Archived }))

	return &Managers{Cities: cities, Users: users, Groups: groups, Posts: posts}
}

func newManager[T models.Entity](d Deps, env schema.Env, def Definition[T], store StoreFunc[T], opts ...ReconcilerOption[T]) *Manager[T] {
	entity := def.Schema.Entity()
	if def.AccessTag == "" {
		def.AccessTag = d.AccessTag
	}
	opts = append([]ReconcilerOption[T]{
		WithNotifier[T](d.Notifier),
		WithReconcilerLogger[T](d.Log.With("entity", entity)),
	}, opts...)
	if d.Archiver != nil {
		opts = append(opts, WithArchiver[T](d.Archiver))
	}

	rec := NewReconciler(d.DB, entity, store, opts...)
	return NewManager(def, d.Caller, rec, env,
		WithDefaultVersion[T](d.Version),
		WithManagerLogger[T](d.Log.With("entity", entity)))
}
