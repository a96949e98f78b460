package syncclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jashezan/HomifyHub/internal/browser/badge"
	"github.com/jashezan/HomifyHub/internal/browser/quantity"
	"github.com/jashezan/HomifyHub/pkg/slug"
)

// Storefront paths.
const (
	cartCountPath     = "/carts/count/"
	wishlistCountPath = "/carts/wishlist/count/"
)

// Messages shown when the server sends none.
const (
	genericFailure = "Something went wrong. Please try again."

	msgLoginCart       = "Please login to add items to your cart."
	msgLoginCartUpdate = "Please login to update cart items."
	msgLoginWishlist   = "Please login to use your wishlist."
	msgLoginBundle     = "Please login to add bundles to cart."

	msgAddingToCart     = "Adding to cart..."
	msgAddingBundle     = "Adding bundle..."
	msgRemovingFromCart = "Removing item..."
	msgUpdatingCart     = "Updating cart..."
	msgUpdatingWishlist = "Updating wishlist..."

	msgAddedToCart         = "Added to cart."
	msgBundleAdded         = "Bundle added to cart."
	msgRemovedFromCart     = "Item removed from cart."
	msgCartUpdated         = "Cart updated."
	msgAddedToWishlist     = "Added to wishlist."
	msgRemovedFromWishlist = "Removed from wishlist."
	msgWishlistUpdated     = "Wishlist updated."

	msgCartFailed     = "Could not update your cart."
	msgWishlistFailed = "Could not update your wishlist."
)

// Action names, used for metrics, spans and the in-flight guard.
const (
	ActionCartAdd        = "cart.add"
	ActionCartAddBundle  = "cart.add_bundle"
	ActionCartRemove     = "cart.remove"
	ActionCartUpdate     = "cart.update"
	ActionWishlistAdd    = "wishlist.add"
	ActionWishlistRemove = "wishlist.remove"
	ActionWishlistToggle = "wishlist.toggle"
)

type addOptions struct {
	variant string
	max     int
}

// AddOption customises AddToCart.
type AddOption func(*addOptions)

// WithVariant sends the chosen product variant.
func WithVariant(v string) AddOption {
	return func(o *addOptions) { o.variant = v }
}

// WithMaxQuantity sets the clamp ceiling, normally the input's max attribute.
func WithMaxQuantity(n int) AddOption {
	return func(o *addOptions) { o.max = n }
}

// AddToCart adds qty of the product to the cart. qty is clamped to
// [1, max], max defaulting to quantity.DefaultMax.
func (c *Client) AddToCart(ctx context.Context, productSlug string, qty int, opts ...AddOption) (*Result, error) {
	o := addOptions{max: quantity.DefaultMax}
	for _, opt := range opts {
		opt(&o)
	}
	if err := c.checkSlug(ActionCartAdd, productSlug); err != nil {
		return nil, err
	}

	form := url.Values{"quantity": {strconv.Itoa(quantity.Clamp(qty, quantity.DefaultMin, o.max))}}
	if o.variant != "" {
		form.Set("variant", o.variant)
	}
	return c.run(ctx, &action{
		name:      ActionCartAdd,
		target:    productSlug,
		badge:     badge.Cart,
		needsAuth: c.cartAuth,
		loginMsg:  msgLoginCart,
		pending:   msgAddingToCart,
		succeeded: msgAddedToCart,
		failed:    msgCartFailed,
		path:      "/carts/add/" + url.PathEscape(productSlug) + "/",
		form:      form,
		countPath: cartCountPath,
	})
}

// AddBundleToCart adds one of the bundle to the cart. Bundles need a
// signed-in shopper.
func (c *Client) AddBundleToCart(ctx context.Context, bundleSlug string) (*Result, error) {
	if err := c.checkSlug(ActionCartAddBundle, bundleSlug); err != nil {
		return nil, err
	}
	return c.run(ctx, &action{
		name:      ActionCartAddBundle,
		target:    bundleSlug,
		badge:     badge.Cart,
		needsAuth: true,
		loginMsg:  msgLoginBundle,
		pending:   msgAddingBundle,
		succeeded: msgBundleAdded,
		failed:    msgCartFailed,
		path:      "/carts/add-bundle/" + url.PathEscape(bundleSlug) + "/",
		form:      url.Values{},
		countPath: cartCountPath,
	})
}

// RemoveFromCart deletes a cart line.
func (c *Client) RemoveFromCart(ctx context.Context, itemID int64) (*Result, error) {
	if err := c.checkItem(ActionCartRemove, itemID); err != nil {
		return nil, err
	}
	id := strconv.FormatInt(itemID, 10)
	return c.run(ctx, &action{
		name:      ActionCartRemove,
		target:    id,
		badge:     badge.Cart,
		needsAuth: c.cartAuth,
		loginMsg:  msgLoginCart,
		pending:   msgRemovingFromCart,
		succeeded: msgRemovedFromCart,
		failed:    msgCartFailed,
		path:      "/carts/remove/" + id + "/",
		form:      url.Values{},
		countPath: cartCountPath,
	})
}

// UpdateCartItem sets a cart line's quantity, clamped to
// [1, quantity.CartMax].
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, qty int) (*Result, error) {
	if err := c.checkItem(ActionCartUpdate, itemID); err != nil {
		return nil, err
	}
	id := strconv.FormatInt(itemID, 10)
	return c.run(ctx, &action{
		name:      ActionCartUpdate,
		target:    id,
		badge:     badge.Cart,
		needsAuth: c.cartAuth,
		loginMsg:  msgLoginCartUpdate,
		pending:   msgUpdatingCart,
		succeeded: msgCartUpdated,
		failed:    msgCartFailed,
		path:      "/carts/update/" + id + "/",
		form:      url.Values{"quantity": {strconv.Itoa(quantity.Clamp(qty, quantity.DefaultMin, quantity.CartMax))}},
		countPath: cartCountPath,
	})
}

// AddToWishlist saves the product to the shopper's wishlist.
func (c *Client) AddToWishlist(ctx context.Context, productSlug string) (*Result, error) {
	return c.wishlist(ctx, ActionWishlistAdd, "add", productSlug, msgAddedToWishlist)
}

// RemoveFromWishlist drops the product from the wishlist.
func (c *Client) RemoveFromWishlist(ctx context.Context, productSlug string) (*Result, error) {
	return c.wishlist(ctx, ActionWishlistRemove, "remove", productSlug, msgRemovedFromWishlist)
}

// ToggleWishlist adds the product when absent and removes it otherwise.
// Result.InWishlist carries the new state.
func (c *Client) ToggleWishlist(ctx context.Context, productSlug string) (*Result, error) {
	return c.wishlist(ctx, ActionWishlistToggle, "toggle", productSlug, msgWishlistUpdated)
}

func (c *Client) wishlist(ctx context.Context, name, verb, productSlug, succeeded string) (*Result, error) {
	if err := c.checkSlug(name, productSlug); err != nil {
		return nil, err
	}
	return c.run(ctx, &action{
		name:      name,
		target:    productSlug,
		badge:     badge.Wishlist,
		needsAuth: true,
		loginMsg:  msgLoginWishlist,
		pending:   msgUpdatingWishlist,
		succeeded: succeeded,
		failed:    msgWishlistFailed,
		path:      "/carts/wishlist/" + verb + "/" + url.PathEscape(productSlug) + "/",
		form:      url.Values{},
		countPath: wishlistCountPath,
	})
}

// RefreshCartCount fetches the cart count and reconciles the cart badge.
func (c *Client) RefreshCartCount(ctx context.Context) (int, error) {
	return c.refresh(ctx, badge.Cart, cartCountPath)
}

// RefreshWishlistCount fetches the wishlist count and reconciles the
// wishlist badge. Guests get ErrNotAuthenticated without a request.
func (c *Client) RefreshWishlistCount(ctx context.Context) (int, error) {
	if !c.auth {
		return 0, fmt.Errorf("wishlist.count: %w", ErrNotAuthenticated)
	}
	return c.refresh(ctx, badge.Wishlist, wishlistCountPath)
}

func (c *Client) checkSlug(name, s string) error {
	if slug.Valid(s) {
		return nil
	}
	syncActionsTotal.WithLabelValues(name, outcomeInvalid).Inc()
	return fmt.Errorf("%s %q: %w", name, s, ErrInvalidTarget)
}

func (c *Client) checkItem(name string, id int64) error {
	if id > 0 {
		return nil
	}
	syncActionsTotal.WithLabelValues(name, outcomeInvalid).Inc()
	return fmt.Errorf("%s %d: %w", name, id, ErrInvalidTarget)
}
