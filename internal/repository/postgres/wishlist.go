package postgres

import (
	"context"
	"fmt"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/pkg/database"
)

// WishlistRepository implements repository.WishlistRepository using PostgreSQL.
type WishlistRepository struct {
	db database.DBTX
}

// NewWishlistRepository creates a new PostgreSQL-backed wishlist repository.
func NewWishlistRepository(db database.DBTX) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// Add inserts a product into the user's wishlist. Adding a product twice is
// not an error.
func (r *WishlistRepository) Add(ctx context.Context, userID string, productID int64) (added bool, err error) {
	query := `INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2) ON CONFLICT (user_id, product_id) DO NOTHING`
	ctx, end := database.Trace(ctx, database.Postgres, "AddWishlistItem", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID, productID)
	if err != nil {
		return false, fmt.Errorf("add to wishlist: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Remove deletes a product from the user's wishlist.
func (r *WishlistRepository) Remove(ctx context.Context, userID string, productID int64) (removed bool, err error) {
	query := `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`
	ctx, end := database.Trace(ctx, database.Postgres, "RemoveWishlistItem", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove from wishlist: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Exists checks whether a product is in the user's wishlist.
func (r *WishlistRepository) Exists(ctx context.Context, userID string, productID int64) (exists bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)`
	ctx, end := database.Trace(ctx, database.Postgres, "WishlistItemExists", query)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, query, userID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check wishlist item exists: %w", err)
	}
	return exists, nil
}

// Count returns the number of products in the user's wishlist.
func (r *WishlistRepository) Count(ctx context.Context, userID string) (n int, err error) {
	query := `SELECT COUNT(*) FROM wishlist_items WHERE user_id = $1`
	ctx, end := database.Trace(ctx, database.Postgres, "CountWishlist", query)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count wishlist items: %w", err)
	}
	return n, nil
}

// List returns a page of the user's wishlist, most recently added first.
func (r *WishlistRepository) List(ctx context.Context, userID string, limit, offset int) (items []*domain.WishlistItem, err error) {
	query := `SELECT w.user_id, w.created_at, p.id, p.slug, p.name, p.price_cents, p.stock, p.image_url, p.created_at
		FROM wishlist_items w JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
		LIMIT $2 OFFSET $3`
	ctx, end := database.Trace(ctx, database.Postgres, "ListWishlist", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list wishlist items: %w", err)
	}
	defer rows.Close()

	items = []*domain.WishlistItem{}
	for rows.Next() {
		var item domain.WishlistItem
		p := &item.Product
		if err := rows.Scan(&item.UserID, &item.CreatedAt,
			&p.ID, &p.Slug, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist rows: %w", err)
	}
	return items, nil
}
