package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/internal/service"
	"github.com/jashezan/HomifyHub/pkg/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Product page quantity inputs allow up to this many units per click.
const productQuantityMax = 99

var pageTemplate = template.Must(
	template.New("storefront.html").Funcs(template.FuncMap{
		"money": formatCents,
	}).ParseFS(templateFS, "templates/storefront.html"),
)

// PageLimits caps how many products and bundles the page lists.
type PageLimits struct {
	Products int
	Bundles  int
}

// PageHandler renders the storefront page the sync client operates on.
type PageHandler struct {
	catalog  *service.CatalogService
	carts    *service.CartService
	wishlist *service.WishlistService
	limits   PageLimits
	logger   *slog.Logger
}

// NewPageHandler creates a new storefront page handler.
func NewPageHandler(
	catalog *service.CatalogService,
	carts *service.CartService,
	wishlist *service.WishlistService,
	limits PageLimits,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		catalog:  catalog,
		carts:    carts,
		wishlist: wishlist,
		limits:   limits,
		logger:   logger,
	}
}

type pageData struct {
	Authenticated bool
	Email         string
	CSRFToken     string
	CartCount     int
	WishlistCount int
	Products      []*domain.Product
	Bundles       []*domain.Bundle
	Cart          *domain.Cart
	QuantityMax   int
	CartLineMax   int
}

// Home handles GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFromContext(ctx)

	products, err := h.catalog.Featured(ctx, h.limits.Products)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bundles, err := h.catalog.Bundles(ctx, h.limits.Bundles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cart, err := h.carts.GetCart(ctx, id.Key())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := pageData{
		Authenticated: id.Authenticated(),
		Email:         id.Email,
		CSRFToken:     middleware.CSRFTokenFromContext(ctx),
		CartCount:     cart.Count(),
		Products:      products,
		Bundles:       bundles,
		Cart:          cart,
		QuantityMax:   productQuantityMax,
		CartLineMax:   domain.MaxQuantityPerItem,
	}
	if id.Authenticated() {
		if data.WishlistCount, err = h.wishlist.Count(ctx, id.UserID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "render storefront page",
		slog.String("error", err.Error()),
	)
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
