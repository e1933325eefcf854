package commands

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/tofu-suite/tofu/internal/adapters/backup"
	"github.com/tofu-suite/tofu/internal/adapters/repository"
	"github.com/tofu-suite/tofu/internal/application/services"
	"github.com/tofu-suite/tofu/internal/infrastructure/config"
	"github.com/tofu-suite/tofu/internal/infrastructure/database"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
	"github.com/tofu-suite/tofu/internal/infrastructure/metrics"
	"github.com/tofu-suite/tofu/internal/infrastructure/paths"
	"github.com/tofu-suite/tofu/internal/ports"
)

// app is the composition root shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Recorder
	db      *database.DB
	redis   *redis.Client
	store   *services.Store
}

// bootstrap loads configuration, opens the configured backend and returns
// an initialised store.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return bootstrapWith(ctx, cfg)
}

func bootstrapWith(ctx context.Context, cfg *config.Config) (*app, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: appLogger}
	var opts []services.Option
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		opts = append(opts, services.WithMetrics(a.metrics))
	}

	open, err := a.repositoryFactory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	manager := services.NewManager(open, paths.ResolveDataFile, appLogger, opts...)
	store, err := manager.Instance(ctx, cfg.Storage.DataPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	a.store = store

	appLogger.Debugw("Document ready", "driver", cfg.Storage.Driver, "location", store.Location())
	return a, nil
}

// repositoryFactory connects to the configured backend. SQL schemas are
// migrated on connect.
func (a *app) repositoryFactory(ctx context.Context) (services.RepositoryFactory, error) {
	name := a.cfg.Storage.DocumentName

	switch a.cfg.Storage.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		db, err := a.openDatabase()
		if err != nil {
			return nil, err
		}
		a.db = db
		if changed, err := db.MigrateUp(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		} else if changed {
			a.logger.Infow("Database schema migrated", "driver", a.cfg.Storage.Driver)
		}
		return func(string) (ports.DocumentRepository, error) {
			return repository.NewSQLRepository(db.DB, name), nil
		}, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.GetAddr(),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		return func(string) (ports.DocumentRepository, error) {
			return repository.NewRedisRepository(client, a.cfg.Redis.Prefix, name), nil
		}, nil
	}

	return func(path string) (ports.DocumentRepository, error) {
		return repository.NewFileRepository(path), nil
	}, nil
}

func (a *app) openDatabase() (*database.DB, error) {
	var (
		db  *database.DB
		err error
	)
	if a.cfg.Storage.Driver == config.DriverSQLite {
		db, err = database.NewSQLite(a.cfg.SQLite)
	} else {
		db, err = database.New(a.cfg.Database)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// backups opens the configured backup target.
func (a *app) backups(ctx context.Context) (ports.BackupRepository, error) {
	if a.cfg.Backup.Target == config.BackupTargetS3 {
		return backup.OpenS3(ctx, a.cfg.Backup)
	}
	return backup.NewDirStore(a.cfg.Backup.Dir), nil
}

// Close releases connections and flushes the log.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warnw("Failed to close database", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warnw("Failed to close redis", "error", err)
		}
	}
	_ = a.logger.Close()
}
