// Package migrate applies the embedded goose migrations to a SQL datastore.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/assets"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage/mysql"
	"github.com/energia/resourcecatalog/pkg/storage/postgres"
	"github.com/energia/resourcecatalog/pkg/storage/sqlite"
)

// MigrationConfig contains the configuration needed for running migrations.
type MigrationConfig struct {
	Engine        string
	URI           string
	TargetVersion uint
	Timeout       time.Duration
	Verbose       bool
	Username      string
	Password      string
	Logger        logger.Logger
}

// MigrationProvider runs the schema migrations of one database engine.
type MigrationProvider interface {
	RunMigrations(ctx context.Context, config MigrationConfig) error
	GetCurrentVersion(ctx context.Context, config MigrationConfig) (int64, error)
	GetSupportedEngine() string
}

// MigratorRegistry manages migration providers for different database engines.
type MigratorRegistry struct {
	providers map[string]MigrationProvider
}

// NewMigratorRegistry returns a registry holding the postgres, mysql and sqlite providers.
func NewMigratorRegistry() *MigratorRegistry {
	r := &MigratorRegistry{providers: map[string]MigrationProvider{}}
	r.RegisterProvider(&gooseProvider{
		engine:     "postgres",
		driver:     "pgx",
		dir:        assets.PostgresMigrationDir,
		prepareURI: func(c MigrationConfig) (string, error) { return postgres.PrepareURI(c.URI, c.Username, c.Password) },
	})
	r.RegisterProvider(&gooseProvider{
		engine:     "mysql",
		driver:     "mysql",
		dir:        assets.MySQLMigrationDir,
		prepareURI: func(c MigrationConfig) (string, error) { return mysql.PrepareDSN(c.URI, c.Username, c.Password) },
	})
	r.RegisterProvider(&gooseProvider{
		engine:     "sqlite",
		driver:     "sqlite",
		dir:        assets.SqliteMigrationDir,
		prepareURI: func(c MigrationConfig) (string, error) { return sqlite.PrepareDSN(c.URI) },
	})
	return r
}

// RegisterProvider registers a migration provider under the engine it supports.
func (r *MigratorRegistry) RegisterProvider(provider MigrationProvider) {
	r.providers[provider.GetSupportedEngine()] = provider
}

// GetProvider returns the migration provider for the specified engine.
func (r *MigratorRegistry) GetProvider(engine string) (MigrationProvider, bool) {
	provider, exists := r.providers[engine]
	return provider, exists
}

// RunMigrations runs the migrations for the given config with the built-in providers.
func RunMigrations(ctx context.Context, cfg MigrationConfig) error {
	return NewMigratorRegistry().RunMigrations(ctx, cfg)
}

// RunMigrations runs the migrations of the engine named in cfg. The memory engine has no schema.
func (r *MigratorRegistry) RunMigrations(ctx context.Context, cfg MigrationConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.Engine == "memory" {
		cfg.Logger.Info("no migrations to run for `memory` datastore")
		return nil
	}

	provider, exists := r.GetProvider(cfg.Engine)
	if !exists {
		return fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}

	return provider.RunMigrations(ctx, cfg)
}

type gooseProvider struct {
	engine     string
	driver     string
	dir        string
	prepareURI func(MigrationConfig) (string, error)
}

func (p *gooseProvider) GetSupportedEngine() string {
	return p.engine
}

func (p *gooseProvider) open(ctx context.Context, config MigrationConfig) (*sql.DB, error) {
	goose.SetLogger(goose.NopLogger())
	goose.SetVerbose(config.Verbose)

	if err := goose.SetDialect(p.engine); err != nil {
		return nil, fmt.Errorf("failed to set %s dialect: %w", p.engine, err)
	}
	goose.SetBaseFS(assets.EmbedMigrations)

	uri, err := p.prepareURI(config)
	if err != nil {
		return nil, err
	}

	db, err := goose.OpenDBWithDriver(p.driver, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", p.engine, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = config.Timeout
	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize %s connection: %w", p.engine, err)
	}

	return db, nil
}

func (p *gooseProvider) GetCurrentVersion(ctx context.Context, config MigrationConfig) (int64, error) {
	db, err := p.open(ctx, config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return goose.GetDBVersionContext(ctx, db)
}

func (p *gooseProvider) RunMigrations(ctx context.Context, config MigrationConfig) error {
	if config.Logger == nil {
		config.Logger = logger.NewNoopLogger()
	}

	db, err := p.open(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	currentVersion, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get %s db version: %w", p.engine, err)
	}

	log := config.Logger.With(zap.String("engine", p.engine), zap.Int64("current_version", currentVersion))

	if config.TargetVersion == 0 {
		log.Info("running all migrations")
		if err := goose.UpContext(ctx, db, p.dir); err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", p.engine, err)
		}
		log.Info("migration done")
		return nil
	}

	target := int64(config.TargetVersion)
	log.Info("migrating to target version", zap.Int64("target_version", target))

	switch {
	case target < currentVersion:
		if err := goose.DownToContext(ctx, db, p.dir, target); err != nil {
			return fmt.Errorf("failed to run %s migrations down to %v: %w", p.engine, target, err)
		}
	case target > currentVersion:
		if err := goose.UpToContext(ctx, db, p.dir, target); err != nil {
			return fmt.Errorf("failed to run %s migrations up to %v: %w", p.engine, target, err)
		}
	default:
		log.Info("nothing to do")
		return nil
	}

	log.Info("migration done")
	return nil
}
