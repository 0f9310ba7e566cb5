package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
)

const (
	// QuantityScale is the number of decimal places kept for stock quantities.
	QuantityScale = 3
	// PriceScale is the number of decimal places kept for unit prices.
	PriceScale = 2
)

// Product is a catalog row. Products are never hard-deleted; IsActive=false
// hides them from sale and search while keeping invoice history intact.
type Product struct {
	ProductID         int64           `json:"product_id" db:"product_id"`
	ProductName       string          `json:"product_name" db:"product_name"`
	QuantityAvailable decimal.Decimal `json:"quantity_available" db:"quantity_available"`
	UnitPrice         decimal.Decimal `json:"unit_price" db:"unit_price"`
	LastUpdated       time.Time       `json:"last_updated" db:"last_updated"`
	IsActive          bool            `json:"is_active" db:"is_active"`
}

// NewProduct validates the fields and returns an active product.
func NewProduct(name string, quantity, unitPrice decimal.Decimal) (*Product, error) {
	name = strings.TrimSpace(name)
	if err := validateFields(name, quantity, unitPrice); err != nil {
		return nil, err
	}

	return &Product{
		ProductName:       name,
		QuantityAvailable: quantity,
		UnitPrice:         unitPrice,
		LastUpdated:       time.Now().UTC(),
		IsActive:          true,
	}, nil
}

// CanSell reports whether quantity can be taken from the current stock.
func (p *Product) CanSell(quantity decimal.Decimal) bool {
	return p.IsActive && p.QuantityAvailable.GreaterThanOrEqual(quantity)
}

func validateFields(name string, quantity, unitPrice decimal.Decimal) error {
	if name == "" {
		return apperrors.Validation("product_name", "is required")
	}
	if quantity.IsNegative() {
		return apperrors.Validation("quantity_available", "must be non-negative")
	}
	if !HasScale(quantity, QuantityScale) {
		return apperrors.Validation("quantity_available", "must have at most 3 decimal places")
	}
	if !unitPrice.IsPositive() {
		return apperrors.Validation("unit_price", "must be positive")
	}
	if !HasScale(unitPrice, PriceScale) {
		return apperrors.Validation("unit_price", "must have at most 2 decimal places")
	}
	return nil
}

// HasScale reports whether d has no more than places significant decimals.
func HasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// ValidateSaleQuantity checks a quantity typed at the till.
func ValidateSaleQuantity(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return apperrors.Validation("quantity", "must be positive")
	}
	if !HasScale(quantity, QuantityScale) {
		return apperrors.Validation("quantity", "must have at most 3 decimal places")
	}
	return nil
}
