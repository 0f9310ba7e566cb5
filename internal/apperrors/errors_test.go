package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
		kind     string
	}{
		{"validation", Validation("quantity", "must be positive"), ErrValidation, http.StatusBadRequest, "validation_error"},
		{"not found", NotFound("product", int64(7)), ErrNotFound, http.StatusNotFound, "not_found"},
		{"inactive", &InactiveProductError{ProductID: 1, ProductName: "Apples"}, ErrInactiveProduct, http.StatusUnprocessableEntity, "inactive_product"},
		{"stock", &InsufficientStockError{ProductName: "Apples"}, ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
		{"storage", Storage("insert invoice", errors.New("connection reset")), ErrStorage, http.StatusInternalServerError, "storage_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Wrap(tt.err, "checkout")

			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.True(t, IsDomain(wrapped))
			assert.Equal(t, tt.status, HTTPStatus(wrapped))
			assert.Equal(t, tt.kind, Kind(wrapped))
		})
	}
}

func TestInsufficientStockErrorCarriesAmounts(t *testing.T) {
	err := error(&InsufficientStockError{
		ProductName: "Apples",
		Available:   decimal.RequireFromString("10"),
		Requested:   decimal.RequireFromString("10.001"),
	})

	var stockErr *InsufficientStockError
	assert.True(t, errors.As(errors.Wrap(err, "checkout"), &stockErr))
	assert.Equal(t, "10", stockErr.Available.String())
	assert.Equal(t, "10.001", stockErr.Requested.String())
	assert.Equal(t, "insufficient stock for product Apples: only 10.000 available, tried to sell 10.001", err.Error())
}

func TestStorageKeepsDomainErrors(t *testing.T) {
	notFound := NotFound("invoice", int64(3))

	assert.Same(t, notFound, Storage("get invoice", notFound))
	assert.Nil(t, Storage("noop", nil))

	cause := errors.New("broken pipe")
	err := Storage("commit", cause)
	assert.Equal(t, cause, errors.Cause(errors.Unwrap(err)))
	assert.Equal(t, "storage error during commit: broken pipe", err.Error())
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")

	assert.False(t, IsDomain(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "internal_error", Kind(err))
}
