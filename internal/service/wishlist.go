package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/internal/event"
	"github.com/jashezan/HomifyHub/internal/repository"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
	"github.com/jashezan/HomifyHub/pkg/pagination"
)

// User-facing wishlist messages.
const (
	MsgAddedToWishlist     = "Added to wishlist."
	MsgAlreadyInWishlist   = "Already in your wishlist."
	MsgRemovedFromWishlist = "Removed from wishlist."
	MsgWishlistLogin       = "Please login to use your wishlist."
)

// WishlistResult is the outcome of a wishlist mutation.
type WishlistResult struct {
	Message    string
	Count      int
	InWishlist bool
}

// WishlistService implements wishlist operations. Only signed-in users
// have a wishlist.
type WishlistService struct {
	repo     repository.WishlistRepository
	products repository.ProductRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewWishlistService creates a new wishlist service.
func NewWishlistService(
	repo repository.WishlistRepository,
	products repository.ProductRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *WishlistService {
	return &WishlistService{
		repo:     repo,
		products: products,
		producer: producer,
		logger:   logger,
	}
}

// Add saves the product to the user's wishlist. Adding twice succeeds.
func (s *WishlistService) Add(ctx context.Context, userID, slug string) (*WishlistResult, error) {
	product, err := s.lookup(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	added, err := s.repo.Add(ctx, userID, product.ID)
	if err != nil {
		return nil, err
	}
	msg := MsgAddedToWishlist
	if !added {
		msg = MsgAlreadyInWishlist
	}
	return s.finish(ctx, userID, product, event.ActionAdded, msg, true, added)
}

// Remove drops the product from the user's wishlist. Removing a product
// that is not there succeeds.
func (s *WishlistService) Remove(ctx context.Context, userID, slug string) (*WishlistResult, error) {
	product, err := s.lookup(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.Remove(ctx, userID, product.ID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, userID, product, event.ActionRemoved, MsgRemovedFromWishlist, false, removed)
}

// Toggle adds the product when absent and removes it when present.
func (s *WishlistService) Toggle(ctx context.Context, userID, slug string) (*WishlistResult, error) {
	product, err := s.lookup(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, userID, product.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		removed, err := s.repo.Remove(ctx, userID, product.ID)
		if err != nil {
			return nil, err
		}
		return s.finish(ctx, userID, product, event.ActionRemoved, MsgRemovedFromWishlist, false, removed)
	}
	added, err := s.repo.Add(ctx, userID, product.ID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, userID, product, event.ActionAdded, MsgAddedToWishlist, true, added)
}

// Count returns the number of products in the user's wishlist.
func (s *WishlistService) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperrors.Unauthorized(MsgWishlistLogin)
	}
	return s.repo.Count(ctx, userID)
}

// List returns one page of the user's wishlist.
func (s *WishlistService) List(ctx context.Context, userID string, params pagination.Params) (pagination.Result[*domain.WishlistItem], error) {
	if userID == "" {
		return pagination.Result[*domain.WishlistItem]{}, apperrors.Unauthorized(MsgWishlistLogin)
	}
	total, err := s.repo.Count(ctx, userID)
	if err != nil {
		return pagination.Result[*domain.WishlistItem]{}, err
	}
	items, err := s.repo.List(ctx, userID, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[*domain.WishlistItem]{}, err
	}
	return pagination.NewResult(items, total, params), nil
}

func (s *WishlistService) lookup(ctx context.Context, userID, slug string) (*domain.Product, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized(MsgWishlistLogin)
	}
	return s.products.GetBySlug(ctx, slug)
}

func (s *WishlistService) finish(
	ctx context.Context,
	userID string,
	product *domain.Product,
	action, message string,
	inWishlist, changed bool,
) (*WishlistResult, error) {
	count, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count wishlist: %w", err)
	}

	if changed {
		if err := s.producer.PublishWishlistUpdated(ctx, userID, product, action, count); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish wishlist.updated event",
				slog.String("error", err.Error()),
			)
		}
		s.logger.InfoContext(ctx, "wishlist updated",
			slog.String("action", action),
			slog.String("slug", product.Slug),
			slog.Int("count", count),
		)
	}

	return &WishlistResult{Message: message, Count: count, InWishlist: inWishlist}, nil
}
