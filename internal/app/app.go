// Package app builds the storage and cache layers from configuration.
// Both the API server and pantryctl start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pantrypal-api/internal/cache"
	"pantrypal-api/internal/config"
	"pantrypal-api/internal/handler"
	"pantrypal-api/internal/repository"
	"pantrypal-api/internal/repository/migrations"

	"github.com/redis/go-redis/v9"
)

// App holds the opened stores. The caller must call Close.
type App struct {
	Items    repository.ItemRepository
	Live     *repository.LiveStore
	Users    repository.UserRepository
	Cache    cache.Cache
	Notifier cache.Notifier

	StoreType string
	CacheType string

	log     *slog.Logger
	probes  []handler.Probe
	closers []func() error
}

// Options tunes Open.
type Options struct {
	// Migrate applies pending schema migrations. Without it the schema is
	// only checked.
	Migrate bool
}

// Open connects every store named by cfg. On error, anything already
// opened is closed.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (a *App, err error) {
	a = &App{
		StoreType: strings.ToLower(cfg.Store.Type),
		CacheType: strings.ToLower(cfg.Cache.Type),
		log:       log,
	}
	defer func() {
		if err != nil {
			if a.Live == nil && a.Items != nil {
				a.Items.Close()
			}
			a.Close()
			a = nil
		}
	}()

	sqliteDBs := make(map[string]*sql.DB)
	openSQLite := func(path string) (*sql.DB, error) {
		if db, ok := sqliteDBs[path]; ok {
			return db, nil
		}
		db, err := repository.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := a.prepare(db, migrations.SQLite, opts); err != nil {
			return nil, err
		}
		sqliteDBs[path] = db
		a.probes = append(a.probes, handler.Probe{Name: "sqlite", Check: db.PingContext})
		return db, nil
	}

	switch a.StoreType {
	case "mongodb", "mongo":
		repo, err := repository.NewMongoItemRepository(cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.Store.MongoCollection, log)
		if err != nil {
			return nil, fmt.Errorf("opening MongoDB item store: %w", err)
		}
		a.Items = repo
		a.probes = append(a.probes, handler.Probe{Name: "mongodb", Check: func(ctx context.Context) error {
			_, err := repo.GetStats(ctx)
			return err
		}})
		log.Info("MongoDB item store initialized")
	case "postgres", "postgresql":
		db, err := repository.OpenPostgres(cfg.Store.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("opening PostgreSQL item store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := a.prepare(db, migrations.Postgres, opts); err != nil {
			return nil, err
		}
		a.Items = repository.NewPostgresItemRepository(db)
		a.probes = append(a.probes, handler.Probe{Name: "postgres", Check: db.PingContext})
		log.Info("PostgreSQL item store initialized")
	default: // sqlite
		db, err := openSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite item store: %w", err)
		}
		a.Items = repository.NewSQLiteItemRepository(db)
		log.Info("SQLite item store initialized", "path", cfg.Store.Path)
	}

	switch strings.ToLower(cfg.Users.Type) {
	case "mysql":
		db, err := repository.OpenMySQL(ctx, cfg.Users.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening MySQL user store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := a.prepare(db, migrations.MySQL, opts); err != nil {
			return nil, err
		}
		a.Users = repository.NewMySQLUserRepository(db)
		a.probes = append(a.probes, handler.Probe{Name: "mysql", Check: db.PingContext})
		log.Info("MySQL user store initialized")
	default: // sqlite
		db, err := openSQLite(cfg.Users.Path)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite user store: %w", err)
		}
		a.Users = repository.NewSQLiteUserRepository(db)
		log.Info("SQLite user store initialized", "path", cfg.Users.Path)
	}

	switch a.CacheType {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		notifier := cache.NewRedisNotifier(client, "")
		a.closers = append(a.closers, client.Close, notifier.Close)
		a.Cache = cache.NewRedisCache(client, cfg.Cache.RedisKeyPrefix)
		a.Notifier = notifier
		a.probes = append(a.probes, handler.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		log.Info("Redis cache initialized", "addr", cfg.Cache.RedisAddress())
	default: // memory
		mc := cache.NewMemoryCache()
		notifier := cache.NewMemoryNotifier()
		a.closers = append(a.closers, mc.Close, notifier.Close)
		a.Cache = mc
		a.Notifier = notifier
		log.Info("in-memory cache initialized")
	}

	a.Live = repository.NewLiveStore(a.Items, a.Notifier, log)
	// The live store closes the item repository.
	a.closers = append(a.closers, a.Live.Close)
	return a, nil
}

func (a *App) prepare(db *sql.DB, dialect migrations.Dialect, opts Options) error {
	if opts.Migrate {
		if err := migrations.MigrateUp(db, dialect); err != nil {
			return fmt.Errorf("migrating %s database: %w", dialect, err)
		}
		return nil
	}
	if err := migrations.CheckStatus(db, dialect); err != nil {
		return fmt.Errorf("%s schema out of date, run pantryctl migrate: %w", dialect, err)
	}
	return nil
}

// Probes returns readiness checks for every opened backend.
func (a *App) Probes() []handler.Probe {
	return a.probes
}

// Close releases every backend in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
