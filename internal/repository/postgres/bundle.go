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

const bundleColumns = `id, slug, name, price_cents, discount_price_cents`

// BundleRepository implements repository.BundleRepository using PostgreSQL.
type BundleRepository struct {
	db database.DBTX
}

// NewBundleRepository creates a new PostgreSQL-backed bundle repository.
func NewBundleRepository(db database.DBTX) *BundleRepository {
	return &BundleRepository{db: db}
}

// GetBySlug returns the bundle with the given slug and its products.
func (r *BundleRepository) GetBySlug(ctx context.Context, slug string) (b *domain.Bundle, err error) {
	query := `SELECT ` + bundleColumns + ` FROM bundles WHERE slug = $1`
	ctx, end := database.Trace(ctx, database.Postgres, "GetBundleBySlug", query)
	defer func() { end(err) }()

	b = &domain.Bundle{}
	err = r.db.QueryRow(ctx, query, slug).Scan(&b.ID, &b.Slug, &b.Name, &b.PriceCents, &b.DiscountPriceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("bundle", slug)
		}
		return nil, fmt.Errorf("get bundle by slug: %w", err)
	}

	components, err := r.components(ctx, []int64{b.ID})
	if err != nil {
		return nil, err
	}
	b.Products = components[b.ID]
	return b, nil
}

// List returns up to limit bundles by name.
func (r *BundleRepository) List(ctx context.Context, limit int) (bundles []*domain.Bundle, err error) {
	query := `SELECT ` + bundleColumns + ` FROM bundles ORDER BY name, id LIMIT $1`
	ctx, end := database.Trace(ctx, database.Postgres, "ListBundles", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	bundles = []*domain.Bundle{}
	var ids []int64
	for rows.Next() {
		var b domain.Bundle
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.PriceCents, &b.DiscountPriceCents); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		bundles = append(bundles, &b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle rows: %w", err)
	}
	if len(ids) == 0 {
		return bundles, nil
	}

	components, err := r.components(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range bundles {
		b.Products = components[b.ID]
	}
	return bundles, nil
}

// components loads the products of the given bundles, keyed by bundle id.
func (r *BundleRepository) components(ctx context.Context, bundleIDs []int64) (out map[int64][]domain.Product, err error) {
	query := `SELECT bp.bundle_id, p.id, p.slug, p.name, p.price_cents, p.stock, p.image_url, p.created_at
		FROM bundle_products bp JOIN products p ON p.id = bp.product_id
		WHERE bp.bundle_id = ANY($1) ORDER BY bp.bundle_id, p.id`
	ctx, end := database.Trace(ctx, database.Postgres, "ListBundleProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, bundleIDs)
	if err != nil {
		return nil, fmt.Errorf("list bundle products: %w", err)
	}
	defer rows.Close()

	out = make(map[int64][]domain.Product, len(bundleIDs))
	for rows.Next() {
		var bundleID int64
		var p domain.Product
		if err := rows.Scan(&bundleID, &p.ID, &p.Slug, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bundle product: %w", err)
		}
		out[bundleID] = append(out[bundleID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle product rows: %w", err)
	}
	return out, nil
}
