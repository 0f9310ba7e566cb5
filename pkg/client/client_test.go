package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/cart"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/httpapi"
	"github.com/matheusmosca/retail-pos/internal/invoice"
	"github.com/matheusmosca/retail-pos/internal/memstore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, _ := test.NewNullLogger()
	tracer := noop.NewTracerProvider().Tracer("test")
	store := memstore.New()
	products := catalog.NewUseCase(store, tracer, logger)

	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Dependencies{
		ServiceName: "pos-test",
		Logger:      logger,
		Catalog:     products,
		CartService: cart.NewService(products, logger),
		Carts:       cart.NewMemoryStore(),
		Invoices:    invoice.NewUseCase(store, tracer, metricnoop.NewMeterProvider().Meter("test"), logger),
		CartTTL:     time.Hour,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SaleFlow(t *testing.T) {
	// Arrange
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	created, err := c.CreateProduct(ctx, ProductInput{
		ProductName:       "Apples",
		QuantityAvailable: decimal.RequireFromString("10.0"),
		UnitPrice:         decimal.RequireFromString("2.00"),
	})
	require.NoError(t, err)

	// Act
	current, err := c.AddItem(ctx, "Apples", decimal.RequireFromString("3.0"))
	require.NoError(t, err)
	session := c.SessionID()
	removed, err := c.RemoveItem(ctx, 9)
	require.NoError(t, err)
	id, err := c.Checkout(ctx, "Walk-in")
	require.NoError(t, err)

	// Assert
	assert.NotEmpty(t, session)
	assert.Equal(t, session, c.SessionID())
	assert.True(t, current.Total.Equal(decimal.NewFromInt(6)))
	assert.False(t, removed)

	inv, err := c.GetInvoice(ctx, id)
	require.NoError(t, err)
	assert.True(t, inv.GrandTotal.Equal(decimal.NewFromInt(6)))

	p, err := c.GetProduct(ctx, created.ProductID)
	require.NoError(t, err)
	assert.True(t, p.QuantityAvailable.Equal(decimal.NewFromInt(7)))

	invoices, err := c.ListInvoices(ctx, "walk")
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	empty, err := c.GetCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.GetProduct(ctx, 42)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = c.Checkout(ctx, "Ann")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	p, err := c.CreateProduct(ctx, ProductInput{ProductName: "Tea", QuantityAvailable: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.NoError(t, c.Deactivate(ctx, p.ProductID))

	found, err := c.SearchProducts(ctx, "tea", false)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, c.Activate(ctx, p.ProductID))
	_, err = c.AdjustStock(ctx, p.ProductID, decimal.NewFromInt(-2))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	updated, err := c.UpdateProduct(ctx, p.ProductID, ProductInput{ProductName: "Green Tea", QuantityAvailable: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "Green Tea", updated.ProductName)

	all, err := c.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
