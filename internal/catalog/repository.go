package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/database"
)

// Repository defines the product persistence operations.
type Repository interface {
	// Create inserts p and fills in its generated id.
	Create(ctx context.Context, p *Product) error

	// Update overwrites name, quantity and price of an existing product.
	Update(ctx context.Context, p *Product) error

	// SetActive flips the soft-delete flag and stamps last_updated.
	SetActive(ctx context.Context, productID int64, active bool) error

	GetByID(ctx context.Context, productID int64) (*Product, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]Product, error)

	// GetByNameLike is a case-insensitive substring search ordered by name.
	GetByNameLike(ctx context.Context, term string, includeInactive bool) ([]Product, error)

	// UpdateQuantity adds delta (which may be negative) to the stock.
	UpdateQuantity(ctx context.Context, productID int64, delta decimal.Decimal) error
}

// PostgresRepository writes through pgx and runs list queries through sqlx.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

// NewPostgresRepository creates a product repository on a shared pool.
func NewPostgresRepository(pool *pgxpool.Pool, db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		db:   db,
	}
}

const productColumns = `product_id, product_name, quantity_available, unit_price, last_updated, is_active`

func (r *PostgresRepository) Create(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (product_name, quantity_available, unit_price, last_updated, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING product_id
	`, p.ProductName, p.QuantityAvailable, p.UnitPrice, p.LastUpdated, p.IsActive).Scan(&p.ProductID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Validation("product_name", "product '"+p.ProductName+"' already exists")
		}
		return apperrors.Storage("create product", errors.Wrap(err, "failed to insert product"))
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE products
		SET product_name = $1,
		    quantity_available = $2,
		    unit_price = $3,
		    last_updated = NOW()
		WHERE product_id = $4
		RETURNING last_updated, is_active
	`, p.ProductName, p.QuantityAvailable, p.UnitPrice, p.ProductID).Scan(&p.LastUpdated, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("product", p.ProductID)
		}
		if database.IsUniqueViolation(err) {
			return apperrors.Validation("product_name", "product '"+p.ProductName+"' already exists")
		}
		return apperrors.Storage("update product", errors.Wrap(err, "failed to update product"))
	}
	return nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, productID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET is_active = $1, last_updated = NOW()
		WHERE product_id = $2
	`, active, productID)
	if err != nil {
		return apperrors.Storage("set product active", errors.Wrap(err, "failed to update product status"))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = $1
	`, productID).Scan(&p.ProductID, &p.ProductName, &p.QuantityAvailable, &p.UnitPrice, &p.LastUpdated, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", productID)
		}
		return nil, apperrors.Storage("get product", errors.Wrap(err, "failed to get product"))
	}
	return &p, nil
}

func (r *PostgresRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE product_name = $1)", name).Scan(&exists)
	if err != nil {
		return false, apperrors.Storage("check product name", errors.Wrap(err, "failed to check product name"))
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	products := []Product{}
	err := r.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY product_name ASC
	`)
	if err != nil {
		return nil, apperrors.Storage("list products", errors.Wrap(err, "failed to list products"))
	}
	return products, nil
}

func (r *PostgresRepository) GetByNameLike(ctx context.Context, term string, includeInactive bool) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE product_name ILIKE '%' || $1::text || '%'`
	if !includeInactive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY product_name ASC`

	products := []Product{}
	if err := r.db.SelectContext(ctx, &products, query, database.EscapeLike(term)); err != nil {
		return nil, apperrors.Storage("search products", errors.Wrap(err, "failed to search products"))
	}
	return products, nil
}

func (r *PostgresRepository) UpdateQuantity(ctx context.Context, productID int64, delta decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET quantity_available = quantity_available + $1,
		    last_updated = NOW()
		WHERE product_id = $2
	`, delta, productID)
	if err != nil {
		if database.IsCheckViolation(err) {
			return apperrors.Validation("delta", "stock cannot become negative")
		}
		return apperrors.Storage("update quantity", errors.Wrap(err, "failed to update product quantity"))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}
