// Package memstore is an in-process implementation of the catalog and invoice
// repositories. Transactions work on a private copy of the data that replaces
// the shared state on commit; only one writer runs at a time, which gives the
// same serialization the row locks give in PostgreSQL. It backs STORAGE=memory
// and the use case tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/invoice"
)

var (
	_ catalog.Repository = (*Store)(nil)
	_ invoice.Repository = (*Store)(nil)
)

type state struct {
	products map[int64]catalog.Product
	invoices map[int64]invoice.Invoice

	lastProductID int64
	lastInvoiceID int64
	lastItemID    int64
}

func (s *state) clone() *state {
	next := &state{
		products:      make(map[int64]catalog.Product, len(s.products)),
		invoices:      make(map[int64]invoice.Invoice, len(s.invoices)),
		lastProductID: s.lastProductID,
		lastInvoiceID: s.lastInvoiceID,
		lastItemID:    s.lastItemID,
	}
	for id, p := range s.products {
		next.products[id] = p
	}
	for id, inv := range s.invoices {
		inv.Items = append([]invoice.Item(nil), inv.Items...)
		next.invoices[id] = inv
	}
	return next
}

// Store holds products and invoices in memory.
type Store struct {
	writer sync.Mutex

	mu    sync.RWMutex
	state *state
}

func New() *Store {
	return &Store{
		state: &state{
			products: make(map[int64]catalog.Product),
			invoices: make(map[int64]invoice.Invoice),
		},
	}
}

// Tx is a memstore transaction. It holds the writer lock until Commit or Rollback.
type Tx struct {
	store *Store
	state *state
	done  bool
}

func (t *Tx) Commit() error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()

	t.done = true
	t.store.writer.Unlock()
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.writer.Unlock()
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (invoice.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Storage("begin checkout", err)
	}
	s.writer.Lock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return &Tx{store: s, state: snapshot}, nil
}

func (s *Store) txState(tx invoice.Tx) (*state, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, apperrors.Storage("use transaction", errors.New("transaction does not belong to this store"))
	}
	if t.done {
		return nil, apperrors.Storage("use transaction", errors.New("transaction already closed"))
	}
	return t.state, nil
}

// update runs fn as a single-statement write.
func (s *Store) update(fn func(st *state) error) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.RLock()
	next := s.state.clone()
	s.mu.RUnlock()

	if err := fn(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Products

func (s *Store) Create(_ context.Context, p *catalog.Product) error {
	return s.update(func(st *state) error {
		for _, existing := range st.products {
			if existing.ProductName == p.ProductName {
				return apperrors.Validation("product_name", "product '"+p.ProductName+"' already exists")
			}
		}
		st.lastProductID++
		p.ProductID = st.lastProductID
		if p.LastUpdated.IsZero() {
			p.LastUpdated = time.Now().UTC()
		}
		st.products[p.ProductID] = *p
		return nil
	})
}

func (s *Store) Update(_ context.Context, p *catalog.Product) error {
	return s.update(func(st *state) error {
		current, ok := st.products[p.ProductID]
		if !ok {
			return apperrors.NotFound("product", p.ProductID)
		}
		for id, existing := range st.products {
			if id != p.ProductID && existing.ProductName == p.ProductName {
				return apperrors.Validation("product_name", "product '"+p.ProductName+"' already exists")
			}
		}
		current.ProductName = p.ProductName
		current.QuantityAvailable = p.QuantityAvailable
		current.UnitPrice = p.UnitPrice
		current.LastUpdated = time.Now().UTC()
		st.products[p.ProductID] = current

		p.LastUpdated = current.LastUpdated
		p.IsActive = current.IsActive
		return nil
	})
}

func (s *Store) SetActive(_ context.Context, productID int64, active bool) error {
	return s.update(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperrors.NotFound("product", productID)
		}
		p.IsActive = active
		p.LastUpdated = time.Now().UTC()
		st.products[productID] = p
		return nil
	})
}

func (s *Store) GetByID(_ context.Context, productID int64) (*catalog.Product, error) {
	p, ok := s.read().products[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	return &p, nil
}

func (s *Store) ExistsByName(_ context.Context, name string) (bool, error) {
	for _, p := range s.read().products {
		if p.ProductName == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) List(ctx context.Context) ([]catalog.Product, error) {
	return s.GetByNameLike(ctx, "", true)
}

func (s *Store) GetByNameLike(_ context.Context, term string, includeInactive bool) ([]catalog.Product, error) {
	term = strings.ToLower(term)

	products := []catalog.Product{}
	for _, p := range s.read().products {
		if !includeInactive && !p.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(p.ProductName), term) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductName < products[j].ProductName })
	return products, nil
}

func (s *Store) UpdateQuantity(_ context.Context, productID int64, delta decimal.Decimal) error {
	return s.update(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperrors.NotFound("product", productID)
		}
		next := p.QuantityAvailable.Add(delta)
		if next.IsNegative() {
			return apperrors.Validation("delta", "stock cannot become negative")
		}
		p.QuantityAvailable = next
		p.LastUpdated = time.Now().UTC()
		st.products[productID] = p
		return nil
	})
}

// Invoices

func (s *Store) GetProductForUpdate(_ context.Context, tx invoice.Tx, productID int64) (*catalog.Product, error) {
	st, err := s.txState(tx)
	if err != nil {
		return nil, err
	}
	p, ok := st.products[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	return &p, nil
}

func (s *Store) CreateInvoice(_ context.Context, tx invoice.Tx, inv *invoice.Invoice) error {
	st, err := s.txState(tx)
	if err != nil {
		return err
	}
	st.lastInvoiceID++
	inv.InvoiceID = st.lastInvoiceID

	header := *inv
	header.Items = []invoice.Item{}
	st.invoices[inv.InvoiceID] = header
	return nil
}

func (s *Store) CreateInvoiceItem(_ context.Context, tx invoice.Tx, item *invoice.Item) error {
	st, err := s.txState(tx)
	if err != nil {
		return err
	}
	inv, ok := st.invoices[item.InvoiceID]
	if !ok {
		return apperrors.Storage("create invoice item", errors.Errorf("invoice %d does not exist", item.InvoiceID))
	}
	if _, ok := st.products[item.ProductID]; !ok {
		return apperrors.Storage("create invoice item", errors.Errorf("product %d does not exist", item.ProductID))
	}

	st.lastItemID++
	item.ItemID = st.lastItemID
	inv.Items = append(inv.Items, *item)
	st.invoices[item.InvoiceID] = inv
	return nil
}

func (s *Store) DecreaseStock(_ context.Context, tx invoice.Tx, productID int64, quantity decimal.Decimal) error {
	st, err := s.txState(tx)
	if err != nil {
		return err
	}
	p, ok := st.products[productID]
	if !ok {
		return apperrors.NotFound("product", productID)
	}
	next := p.QuantityAvailable.Sub(quantity)
	if next.IsNegative() {
		return apperrors.Storage("decrease stock", errors.Errorf("stock of product %d would go negative", productID))
	}
	p.QuantityAvailable = next
	p.LastUpdated = time.Now().UTC()
	st.products[productID] = p
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID int64) (*invoice.Invoice, error) {
	st := s.read()
	inv, ok := st.invoices[invoiceID]
	if !ok {
		return nil, apperrors.NotFound("invoice", invoiceID)
	}

	items := make([]invoice.Item, len(inv.Items))
	for i, item := range inv.Items {
		item.ProductName = st.products[item.ProductID].ProductName
		items[i] = item
	}
	inv.Items = items
	return &inv, nil
}

func (s *Store) ListInvoices(_ context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	name := strings.ToLower(filter.CustomerName)

	invoices := []invoice.Invoice{}
	for _, inv := range s.read().invoices {
		if !filter.StartDate.IsZero() && inv.InvoiceDate.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && !inv.InvoiceDate.Before(filter.EndDate) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(inv.CustomerName), name) {
			continue
		}
		inv.Items = nil
		invoices = append(invoices, inv)
	}
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].InvoiceDate.Equal(invoices[j].InvoiceDate) {
			return invoices[i].InvoiceDate.After(invoices[j].InvoiceDate)
		}
		return invoices[i].InvoiceID > invoices[j].InvoiceID
	})
	return invoices, nil
}
