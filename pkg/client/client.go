// Package client is a typed HTTP client for the POS API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/cart"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/invoice"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Kind       string `json:"kind"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pos api: %d %s: %s", e.StatusCode, e.Kind, e.Message)
}

// Is matches the apperrors sentinel of the reported kind.
func (e *APIError) Is(target error) bool {
	switch e.Kind {
	case "validation_error":
		return target == apperrors.ErrValidation
	case "not_found":
		return target == apperrors.ErrNotFound
	case "inactive_product":
		return target == apperrors.ErrInactiveProduct
	case "insufficient_stock":
		return target == apperrors.ErrInsufficientStock
	case "storage_error":
		return target == apperrors.ErrStorage
	}
	return false
}

// Client talks to one POS server. It keeps the cart session id the server
// issues and sends it back on every call.
type Client struct {
	http *resty.Client

	mu        sync.RWMutex
	sessionID string
}

// New creates a client for baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	c := &Client{}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if id := c.SessionID(); id != "" {
				req.SetHeader(cart.SessionHeader, id)
			}
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			if id := resp.Header().Get(cart.SessionHeader); id != "" {
				c.SetSessionID(id)
			}
			return nil
		})
	return c
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// SetSessionID pins the cart session, e.g. to resume a till.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &APIError{}
	req := c.http.R().SetContext(ctx).SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.Status()
		}
		return apiErr
	}
	return nil
}

// Products

type ProductInput struct {
	ProductName       string          `json:"product_name"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*catalog.Product, error) {
	var p catalog.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*catalog.Product, error) {
	var p catalog.Product
	if err := c.do(ctx, http.MethodPut, productPath(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	var p catalog.Product
	if err := c.do(ctx, http.MethodGet, productPath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) SearchProducts(ctx context.Context, term string, includeInactive bool) ([]catalog.Product, error) {
	query := url.Values{}
	query.Set("search_query", term)
	query.Set("include_inactive", strconv.FormatBool(includeInactive))

	var products []catalog.Product
	if err := c.do(ctx, http.MethodGet, "/api/products?"+query.Encode(), nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) AdjustStock(ctx context.Context, id int64, delta decimal.Decimal) (*catalog.Product, error) {
	var p catalog.Product
	body := map[string]decimal.Decimal{"delta": delta}
	if err := c.do(ctx, http.MethodPost, productPath(id)+"/stock", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Deactivate(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, productPath(id)+"/deactivate", nil, nil)
}

func (c *Client) Activate(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, productPath(id)+"/activate", nil, nil)
}

func productPath(id int64) string {
	return "/api/products/" + strconv.FormatInt(id, 10)
}

// Cart and invoices

func (c *Client) GetCart(ctx context.Context) (*cart.Response, error) {
	var resp cart.Response
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AddItem(ctx context.Context, term string, quantity decimal.Decimal) (*cart.Response, error) {
	var resp cart.Response
	body := cart.AddItemRequest{ProductSearchTerm: term, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, "/api/cart/items", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveItem reports whether index was inside the cart.
func (c *Client) RemoveItem(ctx context.Context, index int) (bool, error) {
	var resp struct {
		Removed bool `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/cart/items/"+strconv.Itoa(index), nil, &resp); err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (c *Client) Checkout(ctx context.Context, customerName string) (int64, error) {
	var resp invoice.CheckoutResponse
	body := invoice.CheckoutRequest{CustomerName: customerName}
	if err := c.do(ctx, http.MethodPost, "/api/cart/checkout", body, &resp); err != nil {
		return 0, err
	}
	return resp.InvoiceID, nil
}

func (c *Client) GetInvoice(ctx context.Context, id int64) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := c.do(ctx, http.MethodGet, "/api/invoices/"+strconv.FormatInt(id, 10), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoices filters by customer name substring; empty lists everything.
func (c *Client) ListInvoices(ctx context.Context, customerName string) ([]invoice.Invoice, error) {
	path := "/api/invoices"
	if customerName != "" {
		path += "?" + url.Values{"customer_name": {customerName}}.Encode()
	}

	var invoices []invoice.Invoice
	if err := c.do(ctx, http.MethodGet, path, nil, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}
