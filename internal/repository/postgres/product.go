package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/pkg/database"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
)

const productColumns = `id, slug, name, price_cents, stock, image_url, created_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetBySlug returns the product with the given slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`
	ctx, end := database.Trace(ctx, database.Postgres, "GetProductBySlug", query)
	defer func() { end(err) }()

	p = &domain.Product{}
	err = r.db.QueryRow(ctx, query, slug).Scan(
		&p.ID, &p.Slug, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", slug)
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

// List returns products newest first.
func (r *ProductRepository) List(ctx context.Context, limit, offset int) (products []*domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	ctx, end := database.Trace(ctx, database.Postgres, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []*domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}
