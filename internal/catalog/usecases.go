package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/telemetry"
)

// MinSuggestLength is the shortest query the autocomplete endpoint answers.
const MinSuggestLength = 3

// UseCase holds the catalog business rules.
type UseCase struct {
	repository Repository
	tracer     trace.Tracer
	logger     logrus.FieldLogger
}

// NewUseCase creates a catalog UseCase.
func NewUseCase(repository Repository, tracer trace.Tracer, logger logrus.FieldLogger) *UseCase {
	return &UseCase{
		repository: repository,
		tracer:     tracer,
		logger:     logger.WithField("component", "catalog"),
	}
}

// Create adds a new active product, rejecting duplicate names.
func (uc *UseCase) Create(ctx context.Context, name string, quantity, unitPrice decimal.Decimal) (_ *Product, err error) {
	ctx, span := telemetry.StartSpan(ctx, uc.tracer, "catalog.create_product", attribute.String("product_name", name))
	defer func() { telemetry.EndSpan(span, err) }()

	product, err := NewProduct(name, quantity, unitPrice)
	if err != nil {
		return nil, err
	}

	exists, err := uc.repository.ExistsByName(ctx, product.ProductName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Validation("product_name", "product '"+product.ProductName+"' already exists")
	}

	if err := uc.repository.Create(ctx, product); err != nil {
		uc.logger.WithError(err).WithField("product_name", product.ProductName).Error("❌ [CATALOG] create failed")
		return nil, err
	}

	uc.logger.WithFields(logrus.Fields{
		"product_id":   product.ProductID,
		"product_name": product.ProductName,
	}).Info("✅ [CATALOG] product created")
	return product, nil
}

// Update overwrites name, quantity and price of productID. The active flag is preserved.
func (uc *UseCase) Update(ctx context.Context, productID int64, name string, quantity, unitPrice decimal.Decimal) (_ *Product, err error) {
	ctx, span := telemetry.StartSpan(ctx, uc.tracer, "catalog.update_product", attribute.Int64("product_id", productID))
	defer func() { telemetry.EndSpan(span, err) }()

	name = strings.TrimSpace(name)
	if err := validateFields(name, quantity, unitPrice); err != nil {
		return nil, err
	}

	product := &Product{
		ProductID:         productID,
		ProductName:       name,
		QuantityAvailable: quantity,
		UnitPrice:         unitPrice,
	}
	if err := uc.repository.Update(ctx, product); err != nil {
		return nil, err
	}

	uc.logger.WithField("product_id", productID).Info("✅ [CATALOG] product updated")
	return product, nil
}

// Deactivate soft-deletes productID.
func (uc *UseCase) Deactivate(ctx context.Context, productID int64) error {
	return uc.setActive(ctx, productID, false)
}

// Activate restores a soft-deleted product.
func (uc *UseCase) Activate(ctx context.Context, productID int64) error {
	return uc.setActive(ctx, productID, true)
}

func (uc *UseCase) setActive(ctx context.Context, productID int64, active bool) (err error) {
	ctx, span := telemetry.StartSpan(ctx, uc.tracer, "catalog.set_active",
		attribute.Int64("product_id", productID),
		attribute.Bool("active", active),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := uc.repository.SetActive(ctx, productID, active); err != nil {
		return err
	}

	uc.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"active":     active,
	}).Info("♻️ [CATALOG] product status changed")
	return nil
}

// GetByID is a pure read.
func (uc *UseCase) GetByID(ctx context.Context, productID int64) (*Product, error) {
	return uc.repository.GetByID(ctx, productID)
}

// List returns every product, active or not, ordered by name.
func (uc *UseCase) List(ctx context.Context) ([]Product, error) {
	return uc.repository.List(ctx)
}

// GetByNameLike searches by case-insensitive substring. An empty term lists
// everything the includeInactive filter allows.
func (uc *UseCase) GetByNameLike(ctx context.Context, term string, includeInactive bool) ([]Product, error) {
	return uc.repository.GetByNameLike(ctx, strings.TrimSpace(term), includeInactive)
}

// Suggest returns active product names for autocomplete.
func (uc *UseCase) Suggest(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSuggestLength {
		return []string{}, nil
	}

	products, err := uc.repository.GetByNameLike(ctx, query, false)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.ProductName)
	}
	return names, nil
}

// UpdateQuantity adjusts the stock by delta, refusing to take it below zero.
func (uc *UseCase) UpdateQuantity(ctx context.Context, productID int64, delta decimal.Decimal) (err error) {
	ctx, span := telemetry.StartSpan(ctx, uc.tracer, "catalog.update_quantity",
		attribute.Int64("product_id", productID),
		attribute.String("delta", delta.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if delta.IsZero() {
		return apperrors.Validation("delta", "must not be zero")
	}
	if !HasScale(delta, QuantityScale) {
		return apperrors.Validation("delta", "must have at most 3 decimal places")
	}

	if delta.IsNegative() {
		product, err := uc.repository.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.QuantityAvailable.Add(delta).IsNegative() {
			return &apperrors.InsufficientStockError{
				ProductName: product.ProductName,
				Available:   product.QuantityAvailable,
				Requested:   delta.Neg(),
			}
		}
	}

	if err := uc.repository.UpdateQuantity(ctx, productID, delta); err != nil {
		return err
	}

	uc.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"delta":      delta.String(),
	}).Info("📦 [CATALOG] stock adjusted")
	return nil
}
