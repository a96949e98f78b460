package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/internal/event"
	"github.com/jashezan/HomifyHub/internal/repository"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
)

// saveAttempts bounds how often a mutation is replayed after losing an
// optimistic save to a concurrent request on the same cart.
const saveAttempts = 3

// User-facing messages.
const (
	MsgAddedToCart     = "Added to cart."
	MsgBundleAdded     = "Bundle added to cart."
	MsgBundleLogin     = "Please login to add bundles to cart."
	MsgRemovedFromCart = "Item removed from cart."
	MsgCartUpdated     = "Cart updated."
	MsgOutOfStock      = "Out of stock."
	MsgInsufficient    = "Insufficient stock."
)

// AddItemInput holds the parameters for adding a product to a cart.
type AddItemInput struct {
	Slug     string
	Quantity int
	Variant  string
}

// CartService implements cart operations for guests and users alike.
type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	bundles  repository.BundleRepository
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(
	repo repository.CartRepository,
	products repository.ProductRepository,
	bundles repository.BundleRepository,
	producer *event.Producer,
	logger *slog.Logger,
	cartTTL time.Duration,
) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		bundles:  bundles,
		producer: producer,
		logger:   logger,
		cartTTL:  cartTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the shopper's cart, or an empty one if none is stored.
func (s *CartService) GetCart(ctx context.Context, shopperKey string) (*domain.Cart, error) {
	if shopperKey == "" {
		return nil, apperrors.InvalidInput("shopper is required")
	}
	cart, err := s.repo.Get(ctx, shopperKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(shopperKey), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// Count returns the cart badge count: the sum of line quantities.
func (s *CartService) Count(ctx context.Context, shopperKey string) (int, error) {
	cart, err := s.GetCart(ctx, shopperKey)
	if err != nil {
		return 0, err
	}
	return cart.Count(), nil
}

// AddItem adds quantity units of the product to the cart, merging with an
// existing line for the same product and variant. It returns the saved cart
// and the line that was touched.
func (s *CartService) AddItem(ctx context.Context, shopperKey string, input AddItemInput) (*domain.Cart, *domain.CartItem, error) {
	if input.Quantity <= 0 {
		return nil, nil, apperrors.InvalidInput("Quantity must be at least 1.")
	}
	if input.Quantity > domain.MaxQuantityPerItem {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("Quantity must not exceed %d.", domain.MaxQuantityPerItem))
	}

	product, err := s.products.GetBySlug(ctx, input.Slug)
	if err != nil {
		return nil, nil, err
	}
	if !product.InStock() {
		return nil, nil, apperrors.OutOfStock(MsgOutOfStock)
	}

	var line domain.CartItem
	cart, err := s.mutate(ctx, shopperKey, func(cart *domain.Cart) (int64, string, error) {
		if i := cart.FindLine(product.ID, input.Variant); i >= 0 {
			qty := cart.Items[i].Quantity + input.Quantity
			if !product.CanSupply(qty) {
				return 0, "", apperrors.OutOfStock(MsgInsufficient)
			}
			if qty > domain.MaxQuantityPerItem {
				return 0, "", apperrors.InvalidInput(fmt.Sprintf("Quantity must not exceed %d.", domain.MaxQuantityPerItem))
			}
			cart.Items[i].Quantity = qty
			cart.Items[i].PriceCents = product.PriceCents
			line = cart.Items[i]
			return line.ID, event.ActionUpdated, nil
		}

		if !product.CanSupply(input.Quantity) {
			return 0, "", apperrors.OutOfStock(MsgInsufficient)
		}
		if len(cart.Items) >= domain.MaxItemsPerCart {
			return 0, "", apperrors.InvalidInput(fmt.Sprintf("A cart holds at most %d different items.", domain.MaxItemsPerCart))
		}
		id, err := s.repo.NextItemID(ctx)
		if err != nil {
			return 0, "", fmt.Errorf("allocate cart item id: %w", err)
		}
		line = domain.CartItem{
			ID:         id,
			ProductID:  product.ID,
			Slug:       product.Slug,
			Name:       product.Name,
			Variant:    input.Variant,
			PriceCents: product.PriceCents,
			Quantity:   input.Quantity,
		}
		cart.Items = append(cart.Items, line)
		return id, event.ActionAdded, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("slug", product.Slug),
		slog.Int64("item_id", line.ID),
		slog.Int("quantity", input.Quantity),
		slog.Int("count", cart.Count()),
	)
	return cart, &line, nil
}

// AddBundle adds one of the bundle to the cart, or one more to its existing
// line. Bundle stock is the lowest stock among its products.
func (s *CartService) AddBundle(ctx context.Context, shopperKey, bundleSlug string) (*domain.Cart, *domain.CartItem, error) {
	bundle, err := s.bundles.GetBySlug(ctx, bundleSlug)
	if err != nil {
		return nil, nil, err
	}
	if !bundle.CanSupply(1) {
		return nil, nil, apperrors.OutOfStock(MsgOutOfStock)
	}

	var line domain.CartItem
	cart, err := s.mutate(ctx, shopperKey, func(cart *domain.Cart) (int64, string, error) {
		if i := cart.FindBundleLine(bundle.ID); i >= 0 {
			qty := cart.Items[i].Quantity + 1
			if !bundle.CanSupply(qty) {
				return 0, "", apperrors.OutOfStock(MsgInsufficient)
			}
			if qty > domain.MaxQuantityPerItem {
				return 0, "", apperrors.InvalidInput(fmt.Sprintf("Quantity must not exceed %d.", domain.MaxQuantityPerItem))
			}
			cart.Items[i].Quantity = qty
			cart.Items[i].PriceCents = bundle.EffectivePriceCents()
			line = cart.Items[i]
			return line.ID, event.ActionUpdated, nil
		}

		if len(cart.Items) >= domain.MaxItemsPerCart {
			return 0, "", apperrors.InvalidInput(fmt.Sprintf("A cart holds at most %d different items.", domain.MaxItemsPerCart))
		}
		id, err := s.repo.NextItemID(ctx)
		if err != nil {
			return 0, "", fmt.Errorf("allocate cart item id: %w", err)
		}
		line = domain.CartItem{
			ID:         id,
			BundleID:   bundle.ID,
			Slug:       bundle.Slug,
			Name:       bundle.Name,
			PriceCents: bundle.EffectivePriceCents(),
			Quantity:   1,
		}
		cart.Items = append(cart.Items, line)
		return id, event.ActionAdded, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "bundle added to cart",
		slog.String("bundle", bundle.Slug),
		slog.Int64("item_id", line.ID),
		slog.Int("quantity", line.Quantity),
		slog.Int("count", cart.Count()),
	)
	return cart, &line, nil
}

// RemoveItem removes the line with itemID from the cart.
func (s *CartService) RemoveItem(ctx context.Context, shopperKey string, itemID int64) (*domain.Cart, error) {
	cart, err := s.mutate(ctx, shopperKey, func(cart *domain.Cart) (int64, string, error) {
		i := cart.FindItem(itemID)
		if i < 0 {
			return 0, "", apperrors.NotFound("cart item", fmt.Sprint(itemID))
		}
		cart.RemoveAt(i)
		return itemID, event.ActionRemoved, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.Int64("item_id", itemID),
		slog.Int("count", cart.Count()),
	)
	return cart, nil
}

// UpdateItemQuantity sets the quantity of a line. Zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, shopperKey string, itemID int64, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidInput("Quantity must not be negative.")
	}
	if quantity > domain.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Quantity must not exceed %d.", domain.MaxQuantityPerItem))
	}

	cart, err := s.mutate(ctx, shopperKey, func(cart *domain.Cart) (int64, string, error) {
		i := cart.FindItem(itemID)
		if i < 0 {
			return 0, "", apperrors.NotFound("cart item", fmt.Sprint(itemID))
		}
		if quantity == 0 {
			cart.RemoveAt(i)
			return itemID, event.ActionRemoved, nil
		}

		price, err := s.checkSupply(ctx, &cart.Items[i], quantity)
		if err != nil {
			return 0, "", err
		}
		cart.Items[i].Quantity = quantity
		cart.Items[i].PriceCents = price
		return itemID, event.ActionUpdated, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.Int64("item_id", itemID),
		slog.Int("quantity", quantity),
		slog.Int("count", cart.Count()),
	)
	return cart, nil
}

// checkSupply verifies quantity units of the line can be sold and returns the
// current unit price.
func (s *CartService) checkSupply(ctx context.Context, item *domain.CartItem, quantity int) (int64, error) {
	if item.IsBundle() {
		bundle, err := s.bundles.GetBySlug(ctx, item.Slug)
		if err != nil {
			return 0, err
		}
		if !bundle.CanSupply(quantity) {
			return 0, apperrors.OutOfStock(MsgInsufficient)
		}
		return bundle.EffectivePriceCents(), nil
	}

	product, err := s.products.GetBySlug(ctx, item.Slug)
	if err != nil {
		return 0, err
	}
	if !product.CanSupply(quantity) {
		return 0, apperrors.OutOfStock(MsgInsufficient)
	}
	return product.PriceCents, nil
}

// mutate loads the cart, applies fn and saves it with an optimistic version
// check, replaying fn on a fresh copy when a concurrent save won.
func (s *CartService) mutate(
	ctx context.Context,
	shopperKey string,
	fn func(cart *domain.Cart) (itemID int64, action string, err error),
) (*domain.Cart, error) {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		cart, err := s.GetCart(ctx, shopperKey)
		if err != nil {
			return nil, err
		}
		expected := cart.Version

		itemID, action, err := fn(cart)
		if err != nil {
			return nil, err
		}

		now := s.now()
		cart.UpdatedAt = now
		cart.ExpiresAt = now.Add(s.cartTTL)

		ok, err := s.repo.SaveIfVersion(ctx, cart, expected)
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		if !ok {
			s.logger.DebugContext(ctx, "cart changed concurrently, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("expected_version", expected),
			)
			continue
		}

		if err := s.producer.PublishCartUpdated(ctx, cart, action, itemID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
				slog.String("error", err.Error()),
			)
		}
		return cart, nil
	}
	return nil, apperrors.Conflict("Your cart changed in another tab. Please try again.")
}

func (s *CartService) newEmptyCart(shopperKey string) *domain.Cart {
	now := s.now()
	return &domain.Cart{
		ShopperKey: shopperKey,
		Items:      []domain.CartItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.cartTTL),
	}
}
