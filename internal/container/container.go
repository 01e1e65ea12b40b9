package container

import (
	"context"
	"fmt"

	"instruments/scraper/internal/client"
	"instruments/scraper/internal/config"
	"instruments/scraper/internal/domain"
	"instruments/scraper/internal/proxy"
	"instruments/scraper/internal/queue"
	"instruments/scraper/internal/repository"
	"instruments/scraper/internal/service"
	"instruments/scraper/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Fetcher      *client.Fetcher
	Repository   repository.CatalogRepository
	StateManager state.RunStateManager
	Publisher    queue.Publisher

	Service *service.Service

	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	// Initialize ProxySupplier
	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Crawler.Proxies, cfg.Crawler.RootURL)

	container.Fetcher = client.NewFetcher(cfg.Crawler, proxySupplier)
	parser := client.NewListingParser(cfg.Crawler.Selectors)

	// Initialize repository
	repo, err := newRepository(ctx, cfg.Database)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Repository = repo

	if err := repo.EnsureSchema(ctx); err != nil {
		container.Close()
		return nil, err
	}
	log.Infof("✅ Database schema ready (%s)", cfg.Database.Driver)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		container.redis = rdb

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		container.StateManager = state.NewRedisStateManager(rdb, cfg.Redis.KeyPrefix)
		container.Publisher = queue.NewRedisPublisher(rdb, cfg.Redis)
	}

	container.Service = service.NewService(
		container.Fetcher,
		parser,
		repo,
		container.StateManager,
		container.Publisher,
		cfg.Crawler.RootURL,
		cfg.Crawler.MaxWorkers,
		cfg.Redis.LockTTL,
	)

	return container, nil
}

func newRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.CatalogRepository, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return repository.NewSQLiteRepository(cfg.Path)
	case config.DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to parse database config: %w", err)
		}
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxConns)
		}

		db, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return repository.NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Run crawls the catalog once and commits it
func (c *Container) Run(ctx context.Context) (*domain.RunReport, error) {
	return c.Service.Run(ctx)
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.Repository != nil {
		if err := c.Repository.Close(); err != nil {
			log.Warnf("⚠️ Failed to close repository: %v", err)
		}
	}
	if c.redis != nil {
		c.redis.Close()
	}
	if c.Fetcher != nil {
		c.Fetcher.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}
