package invoice

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/catalog"
	"github.com/matheusmosca/retail-pos/internal/database"
)

// Repository defines the persistence operations of checkout and the invoice read side.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// GetProductForUpdate reads a product and holds its row lock until tx ends.
	GetProductForUpdate(ctx context.Context, tx Tx, productID int64) (*catalog.Product, error)

	// CreateInvoice inserts the header and fills in its id.
	CreateInvoice(ctx context.Context, tx Tx, inv *Invoice) error

	// CreateInvoiceItem inserts one line and fills in its id.
	CreateInvoiceItem(ctx context.Context, tx Tx, item *Item) error

	// DecreaseStock subtracts quantity from the product and stamps last_updated.
	DecreaseStock(ctx context.Context, tx Tx, productID int64, quantity decimal.Decimal) error

	GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter Filter) ([]Invoice, error)
}

// Tx is a unit of work. Rollback after Commit is a no-op.
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresTx implements Tx on a pgx transaction.
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	err := t.tx.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

func NewPostgresRepository(pool *pgxpool.Pool, db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		db:   db,
	}
}

// BeginTx starts a READ COMMITTED transaction.
func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, apperrors.Storage("begin checkout", errors.Wrap(err, "failed to begin transaction"))
	}
	return &PostgresTx{tx: tx}, nil
}

// GetProductForUpdate takes a pessimistic lock (SELECT ... FOR UPDATE).
func (r *PostgresRepository) GetProductForUpdate(ctx context.Context, tx Tx, productID int64) (*catalog.Product, error) {
	pgTx := tx.(*PostgresTx).tx

	var p catalog.Product
	err := pgTx.QueryRow(ctx, `
		SELECT product_id, product_name, quantity_available, unit_price, last_updated, is_active
		FROM products
		WHERE product_id = $1
		FOR UPDATE
	`, productID).Scan(&p.ProductID, &p.ProductName, &p.QuantityAvailable, &p.UnitPrice, &p.LastUpdated, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", productID)
		}
		return nil, apperrors.Storage("lock product", errors.Wrap(err, "failed to get product with lock"))
	}
	return &p, nil
}

func (r *PostgresRepository) CreateInvoice(ctx context.Context, tx Tx, inv *Invoice) error {
	pgTx := tx.(*PostgresTx).tx

	err := pgTx.QueryRow(ctx, `
		INSERT INTO invoices (customer_name, grand_total, invoice_date)
		VALUES ($1, $2, $3)
		RETURNING invoice_id
	`, inv.CustomerName, inv.GrandTotal, inv.InvoiceDate).Scan(&inv.InvoiceID)
	if err != nil {
		return apperrors.Storage("create invoice", errors.Wrap(err, "failed to insert invoice"))
	}
	return nil
}

func (r *PostgresRepository) CreateInvoiceItem(ctx context.Context, tx Tx, item *Item) error {
	pgTx := tx.(*PostgresTx).tx

	err := pgTx.QueryRow(ctx, `
		INSERT INTO invoice_items (invoice_id, product_id, quantity_sold, unit_price, item_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING item_id
	`, item.InvoiceID, item.ProductID, item.QuantitySold, item.UnitPrice, item.ItemTotal).Scan(&item.ItemID)
	if err != nil {
		return apperrors.Storage("create invoice item", errors.Wrapf(err, "failed to insert item for product %d", item.ProductID))
	}
	return nil
}

func (r *PostgresRepository) DecreaseStock(ctx context.Context, tx Tx, productID int64, quantity decimal.Decimal) error {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE products
		SET quantity_available = quantity_available - $1,
		    last_updated = NOW()
		WHERE product_id = $2
	`, quantity, productID)
	if err != nil {
		if database.IsCheckViolation(err) {
			return apperrors.Storage("decrease stock", errors.Wrapf(err, "stock of product %d would go negative", productID))
		}
		return apperrors.Storage("decrease stock", errors.Wrap(err, "failed to decrease stock"))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

func (r *PostgresRepository) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `
		SELECT invoice_id, customer_name, grand_total, invoice_date
		FROM invoices
		WHERE invoice_id = $1
	`, invoiceID).Scan(&inv.InvoiceID, &inv.CustomerName, &inv.GrandTotal, &inv.InvoiceDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("invoice", invoiceID)
		}
		return nil, apperrors.Storage("get invoice", errors.Wrap(err, "failed to get invoice"))
	}

	inv.Items = []Item{}
	err = r.db.SelectContext(ctx, &inv.Items, `
		SELECT ii.item_id, ii.invoice_id, ii.product_id, p.product_name,
		       ii.quantity_sold, ii.unit_price, ii.item_total
		FROM invoice_items ii
		JOIN products p ON p.product_id = ii.product_id
		WHERE ii.invoice_id = $1
		ORDER BY ii.item_id ASC
	`, invoiceID)
	if err != nil {
		return nil, apperrors.Storage("get invoice", errors.Wrap(err, "failed to get invoice items"))
	}
	return &inv, nil
}

func (r *PostgresRepository) ListInvoices(ctx context.Context, filter Filter) ([]Invoice, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !filter.StartDate.IsZero() {
		conditions = append(conditions, "invoice_date >= "+arg(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		conditions = append(conditions, "invoice_date < "+arg(filter.EndDate))
	}
	if filter.CustomerName != "" {
		conditions = append(conditions, "customer_name ILIKE '%' || "+arg(database.EscapeLike(filter.CustomerName))+"::text || '%'")
	}

	query := `SELECT invoice_id, customer_name, grand_total, invoice_date FROM invoices`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY invoice_date DESC, invoice_id DESC"

	invoices := []Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, apperrors.Storage("list invoices", errors.Wrap(err, "failed to list invoices"))
	}
	return invoices, nil
}
