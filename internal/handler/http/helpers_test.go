package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jashezan/HomifyHub/internal/auth"
	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/internal/event"
	redisrepo "github.com/jashezan/HomifyHub/internal/repository/redis"
	"github.com/jashezan/HomifyHub/internal/service"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
	"github.com/jashezan/HomifyHub/pkg/health"
	"github.com/jashezan/HomifyHub/pkg/middleware"
)

const (
	testCSRF    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testSession = "6f1c3c1e-7f4a-4d3b-9a59-0c2a7d1e5b10"
)

// ============================================================================
// In-memory catalog and wishlist
// ============================================================================

type memProducts struct {
	mu    sync.Mutex
	items []*domain.Product
	err   error
}

func (m *memProducts) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("product", slug)
}

func (m *memProducts) List(_ context.Context, limit, offset int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if offset >= len(m.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.items) {
		end = len(m.items)
	}
	return m.items[offset:end], nil
}

type memBundles struct {
	mu       sync.Mutex
	items    []*domain.Bundle
	products *memProducts
}

// withStock returns a copy of b whose products carry their current stock.
func (m *memBundles) withStock(b *domain.Bundle) *domain.Bundle {
	cp := *b
	cp.Products = nil
	for _, p := range b.Products {
		if cur, err := m.products.GetBySlug(context.Background(), p.Slug); err == nil {
			cp.Products = append(cp.Products, *cur)
		}
	}
	return &cp
}

func (m *memBundles) GetBySlug(_ context.Context, slug string) (*domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.Slug == slug {
			return m.withStock(b), nil
		}
	}
	return nil, apperrors.NotFound("bundle", slug)
}

func (m *memBundles) List(_ context.Context, limit int) ([]*domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Bundle
	for _, b := range m.items {
		if len(out) < limit {
			out = append(out, m.withStock(b))
		}
	}
	return out, nil
}

type memWishlist struct {
	mu       sync.Mutex
	products *memProducts
	saved    map[string][]int64
}

func (m *memWishlist) Add(_ context.Context, userID string, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.saved[userID] {
		if id == productID {
			return false, nil
		}
	}
	m.saved[userID] = append(m.saved[userID], productID)
	return true, nil
}

func (m *memWishlist) Remove(_ context.Context, userID string, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.saved[userID]
	for i, id := range ids {
		if id == productID {
			m.saved[userID] = append(ids[:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memWishlist) Exists(_ context.Context, userID string, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.saved[userID] {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memWishlist) Count(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved[userID]), nil
}

func (m *memWishlist) List(_ context.Context, userID string, limit, offset int) ([]*domain.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WishlistItem
	for i, id := range m.saved[userID] {
		if i < offset || len(out) >= limit {
			continue
		}
		for _, p := range m.products.items {
			if p.ID == id {
				out = append(out, &domain.WishlistItem{UserID: userID, Product: *p})
			}
		}
	}
	return out, nil
}

// ============================================================================
// Test server
// ============================================================================

type testEnv struct {
	router   http.Handler
	products *memProducts
	wishlist *memWishlist
	redis    *miniredis.Miniredis
	jwt      *auth.JWTManager
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	products := &memProducts{items: []*domain.Product{
		{ID: 1, Slug: "lamp-3", Name: "Arc Lamp", PriceCents: 4500, Stock: 10, ImageURL: "/media/lamp-3.jpg"},
		{ID: 2, Slug: "chair-1", Name: "Oak Chair", PriceCents: 12000, Stock: 3, ImageURL: "/media/chair-1.jpg"},
		{ID: 4, Slug: "rug-2", Name: "Wool Rug", PriceCents: 8900, Stock: 0, ImageURL: "/media/rug-2.jpg"},
	}}
	wishlist := &memWishlist{products: products, saved: map[string][]int64{}}
	bundles := &memBundles{products: products, items: []*domain.Bundle{
		{ID: 9, Slug: "reading-set", Name: "Reading Set", PriceCents: 15000, Products: []domain.Product{{Slug: "lamp-3"}, {Slug: "chair-1"}}},
		{ID: 10, Slug: "rug-set", Name: "Rug Set", PriceCents: 9900, Products: []domain.Product{{Slug: "rug-2"}}},
	}}

	producer := event.NewProducer(nil, logger)
	ttl := 24 * time.Hour
	svc := Services{
		Catalog:  service.NewCatalogService(products, bundles),
		Cart:     service.NewCartService(redisrepo.NewCartRepository(client, ttl), products, bundles, producer, logger, ttl),
		Wishlist: service.NewWishlistService(wishlist, products, producer, logger),
	}

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	router := NewRouter(svc, health.NewHandler(), logger, RouterConfig{
		ValidateToken:  jwt.Validator(),
		Session:        middleware.SessionConfig{MaxAge: time.Hour},
		ProductsOnPage: 24,
		BundlesOnPage:  6,
		StaticMaxAge:   60,
	})

	return &testEnv{router: router, products: products, wishlist: wishlist, redis: mr, jwt: jwt}
}

// request builds a storefront request carrying the session and CSRF cookies.
// A non-empty userID signs the request in.
func (e *testEnv) request(t *testing.T, method, path string, form url.Values, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: testSession})
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookie, Value: testCSRF})
	req.Header.Set(middleware.CSRFHeader, testCSRF)
	if userID != "" {
		token, err := e.jwt.GenerateAccessToken(userID, userID+"@example.com")
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: token})
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body), rec.Body.String())
	return body
}

func newBareRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: testSession})
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// formatID renders a JSON number decoded into any as a path segment.
func formatID(v any) string {
	return strconv.FormatInt(int64(v.(float64)), 10)
}
