// Package app wires configuration, storage, the remote API stack and the
// entity managers together and runs one command against them.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dmitrijs2005/vksync/internal/archive"
	"github.com/dmitrijs2005/vksync/internal/config"
	"github.com/dmitrijs2005/vksync/internal/credentials"
	"github.com/dmitrijs2005/vksync/internal/crud"
	"github.com/dmitrijs2005/vksync/internal/cryptox"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/likes"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/metrics"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/notify"
	"github.com/dmitrijs2005/vksync/internal/remote"
	"github.com/dmitrijs2005/vksync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/vksync/internal/vkapi"
)

type App struct {
	config   *config.Config
	logger   *logging.SlogLogger
	db       *sql.DB
	repos    repomanager.RepositoryManager
	tokens   credentials.TokenRepository
	sealer   *cryptox.Sealer
	pubsub   *gochannel.GoChannel
	managers *remote.Managers
	posts    *crud.Syncer[*models.Post]
	likes    *likes.Service[*models.Post]
	out      io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stderr, c.LogLevel)

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	db, err := dbx.Open(dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm, err := repomanager.NewSQLRepositoryManager(dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var (
		tokens credentials.TokenRepository = rm.AccessTokens(db)
		sealer *cryptox.Sealer
	)
	if c.TokenSecret != "" {
		sealer = cryptox.NewSealer(c.TokenSecret)
		tokens = credentials.NewSealedStore(tokens, sealer)
	}

	pubsub := notify.NewInProcess(logger.Slog())
	deps := remote.Deps{
		DB:        db,
		Repos:     rm,
		Caller:    newInvoker(c, tokens, logger),
		Notifier:  notify.NewPublisher(pubsub),
		Log:       logger,
		Version:   c.APIVersion,
		AccessTag: c.CredentialTag,
	}

	archiver, err := newArchiver(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if archiver != nil {
		deps.Archiver = archiver
	}

	managers := remote.NewManagers(deps)
	posts := crud.NewSyncer(managers.Posts,
		crud.WithCommitRemote[*models.Post](c.CommitRemote),
		crud.WithLogger[*models.Post](logger.With("component", "crud")))
	ls := likes.NewService(db, managers.Users, managers.Posts.Reconciler(),
		func(tx dbx.DBTX) likes.Association { return rm.PostLikes(tx) },
		logger.With("component", "likes"))

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		repos:    rm,
		tokens:   tokens,
		sealer:   sealer,
		pubsub:   pubsub,
		managers: managers,
		posts:    posts,
		likes:    ls,
		out:      os.Stdout,
	}, nil
}

func newInvoker(c *config.Config, tokens credentials.TokenStore, logger logging.Logger) *vkapi.Invoker {
	provider := credentials.NewStoreProvider(tokens, nil)
	rotator := credentials.NewRotator(provider, c.CredentialProvider,
		credentials.WithBackoff(c.CredentialBackoff),
		credentials.WithRefreshAttempts(c.CredentialRefreshAttempts),
		credentials.WithLogger(logger.With("component", "credentials")))

	var transport vkapi.Transport = vkapi.NewHTTPTransport(c.APIBaseURL, c.RequestTimeout)
	transport = vkapi.NewBreakerTransport(transport, "vkapi", c.BreakerTimeout, logger)

	opts := []vkapi.InvokerOption{
		vkapi.WithRetryPolicy(vkapi.RetryPolicy{MaxAttempts: c.RetryMaxAttempts, Delay: c.RetryDelay}),
		vkapi.WithRateLimit(c.RequestsPerSecond),
		vkapi.WithInvokerLogger(logger.With("component", "vkapi")),
	}
	if c.AccessToken != "" {
		opts = append(opts, vkapi.WithOverrideToken(c.AccessToken))
	}
	return vkapi.NewInvoker(transport, rotator, opts...)
}

// newArchiver prefers S3 and falls back to a local directory. It returns
// nil when neither is configured.
func newArchiver(ctx context.Context, c *config.Config) (remote.Archiver, error) {
	switch {
	case c.S3Bucket != "":
		return archive.NewS3Archive(ctx, archive.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
	case c.ArchiveDir != "":
		return archive.NewDirArchive(c.ArchiveDir)
	default:
		return nil, nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "serving metrics", "addr", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server failed", "error", err)
	}
}

// Run executes the command in args and releases every resource afterwards.
func (app *App) Run(ctx context.Context, args []string) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx)
		}()
	}

	err := app.dispatch(ctx, args)

	cancelFunc()
	wg.Wait()
	app.Close()
	return err
}

func (app *App) Close() {
	if err := app.pubsub.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing pub/sub", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing database", "error", err)
	}
	if app.sealer != nil {
		app.sealer.Wipe()
	}
}
