package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/matheusmosca/retail-pos/internal/cart"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/config"
	"github.com/matheusmosca/retail-pos/internal/database"
	"github.com/matheusmosca/retail-pos/internal/httpapi"
	"github.com/matheusmosca/retail-pos/internal/invoice"
	"github.com/matheusmosca/retail-pos/internal/memstore"
	"github.com/matheusmosca/retail-pos/internal/telemetry"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen port (overrides PORT)"},
			&cli.StringFlag{Name: "storage", Usage: "postgres or memory (overrides STORAGE)"},
			&cli.StringFlag{Name: "log-level", Usage: "overrides LOG_LEVEL"},
		},
		Action: serve,
	}
}

type repositories struct {
	catalog  catalog.Repository
	invoices invoice.Repository
	ping     func(ctx context.Context) error
	close    func()
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(true)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize telemetry")
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("error shutting down telemetry")
		}
	}()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	carts, closeCarts, err := openCartStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCarts()

	tracer := providers.TracerProvider.Tracer(cfg.ServiceName)
	meter := providers.MeterProvider.Meter(cfg.ServiceName)

	products := catalog.NewUseCase(repos.catalog, tracer, logger)
	router := httpapi.NewRouter(httpapi.Dependencies{
		ServiceName: cfg.ServiceName,
		Logger:      logger,
		Catalog:     products,
		CartService: cart.NewService(products, logger),
		Carts:       carts,
		Invoices:    invoice.NewUseCase(repos.invoices, tracer, meter, logger),
		CartTTL:     cfg.Cart.TTL,
		Ping:        repos.ping,
	})

	srv := httpapi.NewServer(cfg.Port, router)
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("🚀 %s listening on port %s (storage=%s)", cfg.ServiceName, cfg.Port, cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "failed to start server")
	case <-ctx.Done():
	}

	logger.Info("🛑 shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRepositories(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*repositories, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("⚠️ using in-memory storage, data is lost on exit")
		store := memstore.New()
		return &repositories{catalog: store, invoices: store, close: func() {}}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database.KeyValueDSN(), database.DirectionUp, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	db := database.NewSQLX(pool)

	return &repositories{
		catalog:  catalog.NewPostgresRepository(pool, db),
		invoices: invoice.NewPostgresRepository(pool, db),
		ping:     pingFunc(pool),
		close: func() {
			_ = db.Close()
			pool.Close()
		},
	}, nil
}

func pingFunc(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// openCartStore uses Redis when REDIS_URL is set and process memory otherwise.
func openCartStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (cart.Store, func(), error) {
	if cfg.Redis.URL == "" {
		logger.Info("🛒 cart sessions kept in memory")
		return cart.NewMemoryStore(), func() {}, nil
	}

	client, err := cart.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("🛒 cart sessions kept in redis")
	return cart.NewRedisStore(client, cfg.Cart.TTL), func() { _ = client.Close() }, nil
}
