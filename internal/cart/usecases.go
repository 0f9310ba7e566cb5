package cart

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/catalog"
)

// ProductFinder is the part of the catalog the cart needs.
type ProductFinder interface {
	GetByNameLike(ctx context.Context, term string, includeInactive bool) ([]catalog.Product, error)
}

// Service builds carts from catalog lookups.
type Service struct {
	products ProductFinder
	logger   logrus.FieldLogger
}

func NewService(products ProductFinder, logger logrus.FieldLogger) *Service {
	return &Service{
		products: products,
		logger:   logger.WithField("component", "cart"),
	}
}

// AddItem resolves term to exactly one active product by its exact name and
// appends a snapshot line for quantity. Stock is only soft-checked here;
// checkout re-validates under lock.
func (s *Service) AddItem(ctx context.Context, c Cart, term string, quantity decimal.Decimal) (Cart, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return c, apperrors.Validation("product", "search term is required")
	}
	if err := catalog.ValidateSaleQuantity(quantity); err != nil {
		return c, err
	}

	candidates, err := s.products.GetByNameLike(ctx, term, false)
	if err != nil {
		return c, err
	}

	var product *catalog.Product
	for i := range candidates {
		if candidates[i].ProductName == term {
			product = &candidates[i]
			break
		}
	}
	if product == nil {
		return c, apperrors.Validation("product", "no active product named '"+term+"'")
	}

	if quantity.GreaterThan(product.QuantityAvailable) {
		return c, apperrors.Validation("quantity",
			"only "+product.QuantityAvailable.StringFixed(catalog.QuantityScale)+" of '"+product.ProductName+"' in stock")
	}

	next := c.WithItem(NewItem(product.ProductID, product.ProductName, product.UnitPrice, quantity))

	s.logger.WithFields(logrus.Fields{
		"session_id": c.SessionID,
		"product_id": product.ProductID,
		"quantity":   quantity.String(),
	}).Info("🛒 [CART] item added")
	return next, nil
}
