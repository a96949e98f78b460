package repository

import (
	"context"

	"github.com/jashezan/HomifyHub/internal/domain"
)

// CartRepository stores carts keyed by shopper.
type CartRepository interface {
	// Get returns the shopper's cart or an ErrNotFound AppError.
	Get(ctx context.Context, shopperKey string) (*domain.Cart, error)

	// SaveIfVersion stores cart only if the stored version still equals
	// expected (0 for a cart that does not exist yet), then bumps
	// cart.Version. It reports false when another writer got there first.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) (bool, error)

	// NextItemID allocates a cart item id unique across all carts.
	NextItemID(ctx context.Context) (int64, error)
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Product, error)
}

// WishlistRepository stores the products a user saved.
type WishlistRepository interface {
	// Add is idempotent. It reports whether the product was newly added.
	Add(ctx context.Context, userID string, productID int64) (bool, error)
	// Remove reports whether the product was in the wishlist.
	Remove(ctx context.Context, userID string, productID int64) (bool, error)
	Exists(ctx context.Context, userID string, productID int64) (bool, error)
	Count(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*domain.WishlistItem, error)
}

// BundleRepository reads product bundles with their components.
type BundleRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Bundle, error)
	List(ctx context.Context, limit int) ([]*domain.Bundle, error)
}
