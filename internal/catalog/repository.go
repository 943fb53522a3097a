// Package catalog reads the product catalog from SQLite. The catalog is
// reference data loaded by migrations; the storefront only ever reads it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"meatline/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, name, price, discounted_price, spec, style, ingredients, image_url, created_at`

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) GetProductsByStyle(ctx context.Context, style string) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE style = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, style)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by style: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}
	return products[0], nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		var price, discounted string
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&price,
			&discounted,
			&p.Spec,
			&p.Style,
			&p.Ingredients,
			&p.ImageURL,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			p.Price = decimal.Zero
		}
		if p.DiscountedPrice, err = decimal.NewFromString(discounted); err != nil {
			p.DiscountedPrice = decimal.Zero
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
