package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aimd54/forum-trophies/internal/clock"
	"github.com/aimd54/forum-trophies/internal/condition"
	"github.com/aimd54/forum-trophies/internal/config"
	"github.com/aimd54/forum-trophies/internal/lock"
	"github.com/aimd54/forum-trophies/internal/mattermost"
	"github.com/aimd54/forum-trophies/internal/repository"
	"github.com/aimd54/forum-trophies/internal/service/scheduler"
	"github.com/aimd54/forum-trophies/internal/service/trophies"
	"github.com/aimd54/forum-trophies/pkg/logger"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *repository.DB
	redis      *redis.Client
	catalog    *condition.Catalog
	trophyRepo *repository.TrophyRepository
	trophies   *trophies.Service
	scheduler  *scheduler.Service
}

// loadConfig reads the config and builds the logger.
func loadConfig(path string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return cfg, log, nil
}

// newCatalog registers the built-in condition types.
func newCatalog(clk clock.Clock) (*condition.Catalog, error) {
	reg := condition.NewRegistry()
	if err := condition.RegisterDefaults(reg, clk); err != nil {
		return nil, fmt.Errorf("failed to register condition types: %w", err)
	}
	return condition.NewTrophyCatalog(reg), nil
}

// newApp connects to PostgreSQL and, when configured, Redis, then wires
// the services.
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, log, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	if cfg.Database.Redis.Host != "" {
		a.redis, err = lock.NewRedisClient(ctx, &cfg.Database.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Connected to Redis")
	}

	clk := clock.Real()
	a.catalog, err = newCatalog(clk)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.trophyRepo = repository.NewTrophyRepository(db)
	a.trophies = trophies.NewService(
		a.catalog,
		a.trophyRepo,
		repository.NewUserRepository(db),
		repository.NewUserTrophyRepository(db),
		clk,
		log.Component("trophies"),
	)

	var locker scheduler.Locker
	if a.redis != nil {
		locker = lock.NewRedisLocker(a.redis)
	}
	var notifier scheduler.Notifier
	if cfg.Mattermost.Enabled {
		notifier = mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))
	}
	a.scheduler = scheduler.NewService(cfg, a.trophies, locker, notifier, log.Component("scheduler"))

	return a, nil
}

// Close releases connections.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
