package service

import (
	"context"
	"fmt"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/internal/repository"
)

// CatalogService reads products and bundles for the storefront page.
type CatalogService struct {
	products repository.ProductRepository
	bundles  repository.BundleRepository
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products repository.ProductRepository, bundles repository.BundleRepository) *CatalogService {
	return &CatalogService{products: products, bundles: bundles}
}

// Featured returns the first limit products of the catalog, newest first.
func (s *CatalogService) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = 24
	}
	products, err := s.products.List(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Bundles returns up to limit bundles by name.
func (s *CatalogService) Bundles(ctx context.Context, limit int) ([]*domain.Bundle, error) {
	if limit <= 0 {
		limit = 6
	}
	bundles, err := s.bundles.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	return bundles, nil
}
