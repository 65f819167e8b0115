package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/Eddy0415/PharmaMap-sub000/internal/cache"
	"github.com/Eddy0415/PharmaMap-sub000/internal/config"
	httpapi "github.com/Eddy0415/PharmaMap-sub000/internal/http"
	"github.com/Eddy0415/PharmaMap-sub000/internal/logger"
	"github.com/Eddy0415/PharmaMap-sub000/internal/messaging"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository/postgres"
	"github.com/Eddy0415/PharmaMap-sub000/internal/seed"
	"github.com/Eddy0415/PharmaMap-sub000/internal/service"
)

const amqpDialAttempts = 5

func main() {
	app := &cli.App{
		Name:  "pharmamap",
		Usage: "pharmacy inventory, orders and availability search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "optional .env file read before the environment",
				Value:   ".env",
				EnvVars: []string{"PHARMAMAP_ENV_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("env-file"))
			if err != nil {
				return err
			}
			if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			c.App.Metadata = map[string]any{"config": cfg}
			return nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or roll back the postgres schema",
				Subcommands: []*cli.Command{
					{
						Name: "up",
						Action: func(c *cli.Context) error {
							cfg, err := postgresConfig(c)
							if err != nil {
								return err
							}
							return postgres.MigrateUp(cfg.Postgres.DSN)
						},
					},
					{
						Name: "down",
						Action: func(c *cli.Context) error {
							cfg, err := postgresConfig(c)
							if err != nil {
								return err
							}
							return postgres.MigrateDown(cfg.Postgres.DSN)
						},
					},
				},
			},
			{
				Name:      "seed",
				Usage:     "load pharmacies, items and stock from a YAML file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("seed needs exactly one file argument", 2)
					}
					cfg := configFrom(c)
					b, err := openBackend(c.Context, cfg)
					if err != nil {
						return err
					}
					defer b.close()
					catalog, ledger, _ := b.services(messaging.Noop{})
					// a running API sharing the redis cache must not serve pre-seed results
					sc, closeCache, err := openSearchCache(c.Context, cfg)
					if err != nil {
						return err
					}
					defer closeCache()
					ledger.OnStockChange(service.NewSearchService(b.catalog, b.inventory, sc, cfg.Search.CacheTTL).Invalidate)
					return applySeed(c.Context, c.Args().First(), catalog, ledger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("pharmamap failed")
	}
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func postgresConfig(c *cli.Context) (*config.Config, error) {
	cfg := configFrom(c)
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("PHARMAMAP_POSTGRES_DSN is required")
	}
	return cfg, nil
}

// backend хранилище, выбранное конфигурацией
type backend struct {
	catalog   repository.CatalogRepository
	inventory repository.InventoryRepository
	orders    repository.OrderRepository
	tx        repository.TxManager
	checks    []httpapi.HealthCheck
	close     func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		store := repository.NewMemoryStore()
		log.Info().Msg("using in-memory storage")
		return &backend{
			catalog:   repository.NewMemoryCatalog(store),
			inventory: store,
			orders:    repository.NewMemoryOrders(store),
			tx:        repository.NewMemoryTx(store),
			close:     func() {},
		}, nil
	}

	db, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	return &backend{
		catalog:   postgres.NewCatalog(db),
		inventory: postgres.NewInventory(db),
		orders:    postgres.NewOrders(db),
		tx:        db,
		checks:    []httpapi.HealthCheck{{Name: "postgres", Check: db.Pool.Ping}},
		close:     db.Close,
	}, nil
}

func (b *backend) services(events service.EventPublisher) (*service.CatalogService, *service.InventoryService, *service.OrderService) {
	catalog := service.NewCatalogService(b.catalog)
	ledger := service.NewInventoryService(b.catalog, b.inventory, events)
	orders := service.NewOrderService(b.catalog, ledger, b.orders, b.tx, events)
	return catalog, ledger, orders
}

// openSearchCache returns redis when configured, otherwise a bounded in-process cache.
func openSearchCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory(cfg.Search.CacheSize, cfg.Search.CacheTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	rc := cache.NewRedis(client, "pharmamap:")
	if err := rc.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("search cache backed by redis")
	return rc, func() { client.Close() }, nil
}

func applySeed(ctx context.Context, path string, catalog seed.Catalog, ledger seed.Ledger) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, f, catalog, ledger)
	return err
}

func serve(c *cli.Context) error {
	cfg := configFrom(c)
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var events service.EventPublisher = messaging.Noop{}
	if cfg.AMQP.URL != "" {
		mq, err := messaging.DialRabbitMQ(cfg.AMQP.URL, cfg.AMQP.Exchange, amqpDialAttempts)
		if err != nil {
			return err
		}
		defer mq.Close()
		events = mq
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing domain events to RabbitMQ")
	}

	searchCache, closeCache, err := openSearchCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	if rc, ok := searchCache.(*cache.Redis); ok {
		b.checks = append(b.checks, httpapi.HealthCheck{Name: "redis", Check: rc.Ping})
	}

	catalog, ledger, orders := b.services(events)
	search := service.NewSearchService(b.catalog, b.inventory, searchCache, cfg.Search.CacheTTL)
	ledger.OnStockChange(search.Invalidate)

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, cfg.SeedFile, catalog, ledger); err != nil {
			return err
		}
	}

	srv := httpapi.NewServer(catalog, ledger, orders, search, b.checks...)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown error")
	}
	log.Info().Msg("server stopped")
	return nil
}
