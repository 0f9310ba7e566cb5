package invoice

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/cart"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/telemetry"
)

// UseCase turns carts into invoices and serves the invoice history.
type UseCase struct {
	repository Repository
	tracer     trace.Tracer
	logger     logrus.FieldLogger

	checkoutCounter  metric.Int64Counter
	checkoutDuration metric.Float64Histogram
}

// NewUseCase creates an invoice UseCase. Instrument creation failures are
// reported to the otel error handler and fall back to no-op instruments.
func NewUseCase(repository Repository, tracer trace.Tracer, meter metric.Meter, logger logrus.FieldLogger) *UseCase {
	checkoutCounter, err := meter.Int64Counter("pos.checkout.total",
		metric.WithDescription("Checkouts attempted, by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}

	checkoutDuration, err := meter.Float64Histogram("pos.checkout.duration",
		metric.WithDescription("Checkout transaction duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &UseCase{
		repository:       repository,
		tracer:           tracer,
		logger:           logger.WithField("component", "invoice"),
		checkoutCounter:  checkoutCounter,
		checkoutDuration: checkoutDuration,
	}
}

// Checkout records the cart lines as one invoice and decrements stock for each
// line, all in a single transaction. Every product touched is locked in
// ascending id order and re-validated against the total quantity the cart asks
// for. On any failure nothing is written and 0 is returned.
func (uc *UseCase) Checkout(ctx context.Context, customerName string, items []cart.Item) (invoiceID int64, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, uc.tracer, "invoice.checkout", attribute.Int("items", len(items)))
	defer func() {
		telemetry.EndSpan(span, err)
		uc.recordCheckout(ctx, start, err)
	}()

	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		return 0, apperrors.Validation("customer_name", "is required")
	}
	if len(items) == 0 {
		return 0, apperrors.Validation("items", "cart is empty")
	}

	requested := make(map[int64]decimal.Decimal, len(items))
	for _, item := range items {
		if err := catalog.ValidateSaleQuantity(item.QuantitySold); err != nil {
			return 0, err
		}
		requested[item.ProductID] = requested[item.ProductID].Add(item.QuantitySold)
	}

	productIDs := make([]int64, 0, len(requested))
	for id := range requested {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	uc.logger.WithFields(logrus.Fields{
		"customer_name": customerName,
		"items":         len(items),
	}).Info("➡️ [CHECKOUT] started")

	// 1. Begin
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// 2. Lock and validate every product
	for _, productID := range productIDs {
		product, err := uc.repository.GetProductForUpdate(ctx, tx, productID)
		if err != nil {
			uc.logger.WithError(err).WithField("product_id", productID).Warn("❌ [CHECKOUT] product lookup failed")
			return 0, err
		}

		if !product.IsActive {
			uc.logger.WithField("product_id", productID).Warn("❌ [CHECKOUT] product inactive")
			return 0, &apperrors.InactiveProductError{ProductID: product.ProductID, ProductName: product.ProductName}
		}

		if want := requested[productID]; !product.CanSell(want) {
			uc.logger.WithFields(logrus.Fields{
				"product_id": productID,
				"available":  product.QuantityAvailable.String(),
				"requested":  want.String(),
			}).Warn("❌ [CHECKOUT] insufficient stock")
			return 0, &apperrors.InsufficientStockError{
				ProductName: product.ProductName,
				Available:   product.QuantityAvailable,
				Requested:   want,
			}
		}
	}

	// 3. Header
	inv := NewInvoice(customerName, items)
	if err := uc.repository.CreateInvoice(ctx, tx, inv); err != nil {
		return 0, err
	}

	// 4. Lines and stock, in cart order
	for i := range inv.Items {
		item := &inv.Items[i]
		item.InvoiceID = inv.InvoiceID

		if err := uc.repository.CreateInvoiceItem(ctx, tx, item); err != nil {
			return 0, err
		}
		if err := uc.repository.DecreaseStock(ctx, tx, item.ProductID, item.QuantitySold); err != nil {
			return 0, err
		}
	}

	// 5. Commit
	if err := tx.Commit(); err != nil {
		return 0, apperrors.Storage("commit checkout", err)
	}

	uc.logger.WithFields(logrus.Fields{
		"invoice_id":  inv.InvoiceID,
		"grand_total": inv.GrandTotal.String(),
	}).Info("✅ [CHECKOUT] invoice created")
	return inv.InvoiceID, nil
}

func (uc *UseCase) recordCheckout(ctx context.Context, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = apperrors.Kind(err)
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if uc.checkoutCounter != nil {
		uc.checkoutCounter.Add(ctx, 1, attrs)
	}
	if uc.checkoutDuration != nil {
		uc.checkoutDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// Get returns an invoice with its lines.
func (uc *UseCase) Get(ctx context.Context, invoiceID int64) (*Invoice, error) {
	return uc.repository.GetInvoice(ctx, invoiceID)
}

// List returns invoices newest first. A range that ends before it starts
// matches nothing.
func (uc *UseCase) List(ctx context.Context, filter Filter) ([]Invoice, error) {
	filter.CustomerName = strings.TrimSpace(filter.CustomerName)
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && !filter.EndDate.After(filter.StartDate) {
		return []Invoice{}, nil
	}
	return uc.repository.ListInvoices(ctx, filter)
}
