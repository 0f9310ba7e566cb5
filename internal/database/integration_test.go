package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/cart"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/config"
	"github.com/matheusmosca/retail-pos/internal/database"
	"github.com/matheusmosca/retail-pos/internal/invoice"
)

// startPostgres runs a throwaway PostgreSQL and returns its settings. The test
// is skipped with -short or when no container runtime is reachable.
func startPostgres(t *testing.T) config.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "root",
				"POSTGRES_PASSWORD": "pass",
				"POSTGRES_DB":       "pos_db",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("container runtime not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return config.Database{
		Host:           host,
		Port:           port.Port(),
		User:           "root",
		Password:       "pass",
		Name:           "pos_db",
		MaxConns:       20,
		ConnectRetries: 10,
		ConnLifetime:   time.Hour,
	}
}

func TestPostgres_CatalogAndCheckout(t *testing.T) {
	cfg := startPostgres(t)
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	require.NoError(t, database.Migrate(cfg.KeyValueDSN(), database.DirectionUp, logger))
	require.NoError(t, database.Migrate(cfg.KeyValueDSN(), database.DirectionUp, logger))

	pool, err := database.Connect(ctx, cfg, logger)
	require.NoError(t, err)
	defer pool.Close()
	db := database.NewSQLX(pool)
	defer db.Close()

	tracer := tracenoop.NewTracerProvider().Tracer("test")
	products := catalog.NewUseCase(catalog.NewPostgresRepository(pool, db), tracer, logger)
	invoices := invoice.NewUseCase(invoice.NewPostgresRepository(pool, db), tracer, noop.NewMeterProvider().Meter("test"), logger)
	carts := cart.NewService(products, logger)

	apples, err := products.Create(ctx, "Apples", decimal.RequireFromString("10.0"), decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	bread, err := products.Create(ctx, "Bread", decimal.NewFromInt(5), decimal.RequireFromString("3.00"))
	require.NoError(t, err)

	t.Run("duplicate name", func(t *testing.T) {
		_, err := products.Create(ctx, "Apples", decimal.NewFromInt(1), decimal.NewFromInt(1))
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		found, err := products.GetByNameLike(ctx, "APP", true)
		require.NoError(t, err)
		require.Len(t, found, 1)

		none, err := products.GetByNameLike(ctx, "%", true)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("apples checkout", func(t *testing.T) {
		c, err := carts.AddItem(ctx, cart.New("s1"), "Apples", decimal.RequireFromString("3.0"))
		require.NoError(t, err)

		id, err := invoices.Checkout(ctx, "Walk-in", c.Items)
		require.NoError(t, err)

		inv, err := invoices.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, inv.GrandTotal.Equal(decimal.NewFromInt(6)))
		require.Len(t, inv.Items, 1)
		assert.Equal(t, "Apples", inv.Items[0].ProductName)

		p, err := products.GetByID(ctx, apples.ProductID)
		require.NoError(t, err)
		assert.True(t, p.QuantityAvailable.Equal(decimal.NewFromInt(7)))
	})

	t.Run("failure leaves no trace", func(t *testing.T) {
		before, err := invoices.List(ctx, invoice.Filter{})
		require.NoError(t, err)

		_, err = invoices.Checkout(ctx, "Bob", []cart.Item{
			cart.NewItem(apples.ProductID, "Apples", apples.UnitPrice, decimal.NewFromInt(1)),
			cart.NewItem(bread.ProductID, "Bread", bread.UnitPrice, decimal.RequireFromString("5.001")),
		})
		assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

		after, err := invoices.List(ctx, invoice.Filter{})
		require.NoError(t, err)
		assert.Len(t, after, len(before))

		p, err := products.GetByID(ctx, apples.ProductID)
		require.NoError(t, err)
		assert.True(t, p.QuantityAvailable.Equal(decimal.NewFromInt(7)))
	})

	t.Run("concurrent buyers never oversell", func(t *testing.T) {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := invoices.Checkout(ctx, "Rush", []cart.Item{
					cart.NewItem(bread.ProductID, "Bread", bread.UnitPrice, decimal.NewFromInt(1)),
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, succeeded)
		p, err := products.GetByID(ctx, bread.ProductID)
		require.NoError(t, err)
		assert.True(t, p.QuantityAvailable.IsZero())
	})

	t.Run("largest line fits the totals", func(t *testing.T) {
		quantity := decimal.RequireFromString("99999999999.999")
		price := decimal.RequireFromString("9999999999.99")
		bulk, err := products.Create(ctx, "Bulk", quantity, price)
		require.NoError(t, err)

		id, err := invoices.Checkout(ctx, "Wholesale", []cart.Item{
			cart.NewItem(bulk.ProductID, "Bulk", price, quantity),
		})
		require.NoError(t, err)

		inv, err := invoices.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, inv.GrandTotal.Equal(quantity.Mul(price)))
	})

	t.Run("deactivated product", func(t *testing.T) {
		require.NoError(t, products.Deactivate(ctx, apples.ProductID))

		_, err := invoices.Checkout(ctx, "Cy", []cart.Item{
			cart.NewItem(apples.ProductID, "Apples", apples.UnitPrice, decimal.NewFromInt(1)),
		})
		assert.ErrorIs(t, err, apperrors.ErrInactiveProduct)
	})

	require.NoError(t, database.Migrate(cfg.KeyValueDSN(), database.DirectionDown, logger))
}
