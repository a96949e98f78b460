package http

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jashezan/HomifyHub/internal/service"
	"github.com/jashezan/HomifyHub/pkg/health"
	"github.com/jashezan/HomifyHub/pkg/middleware"
)

// ServiceName labels metrics and spans.
const ServiceName = "storefront"

// Services bundles what the storefront routes call into.
type Services struct {
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Wishlist *service.WishlistService
}

// RouterConfig carries the settings NewRouter needs beyond its services.
type RouterConfig struct {
	ValidateToken  middleware.TokenValidator
	Session        middleware.SessionConfig
	RateLimiter    *middleware.RateLimiter
	PprofCIDRs     []string
	StaticMaxAge   int
	ProductsOnPage int
	BundlesOnPage  int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Instrument(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.MountDebug(r, cfg.PprofCIDRs, logger)

	static, _ := fs.Sub(staticFS, "static")
	r.With(middleware.CacheControl(cfg.StaticMaxAge)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	pageHandler := NewPageHandler(svc.Catalog, svc.Cart, svc.Wishlist, PageLimits{Products: cfg.ProductsOnPage, Bundles: cfg.BundlesOnPage}, logger)
	cartHandler := NewCartHandler(svc.Cart, logger)
	wishlistHandler := NewWishlistHandler(svc.Wishlist, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session))
		r.Use(middleware.Authenticate(cfg.ValidateToken, logger))
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.CSRF(cfg.Session.Secure, logger))

		r.With(middleware.NoStore).Get("/", pageHandler.Home)

		r.Route("/carts", func(r chi.Router) {
			r.With(middleware.NoStore).Get("/count/", cartHandler.Count)
			r.With(middleware.NoStore).Get("/wishlist/count/", wishlistHandler.Count)
			r.With(middleware.NoStore, middleware.RequireUser(service.MsgWishlistLogin)).
				Get("/wishlist/", wishlistHandler.List)

			r.Group(func(r chi.Router) {
				if cfg.RateLimiter != nil {
					r.Use(cfg.RateLimiter.Handler)
				}

				r.Post("/add/{slug}/", cartHandler.AddItem)
				r.With(middleware.RequireUser(service.MsgBundleLogin)).
					Post("/add-bundle/{slug}/", cartHandler.AddBundle)
				r.Post("/remove/{item_id}/", cartHandler.RemoveItem)
				r.Post("/update/{item_id}/", cartHandler.UpdateItemQuantity)

				wl := r.With(middleware.RequireUser(service.MsgWishlistLogin))
				wl.Post("/wishlist/add/{slug}/", wishlistHandler.Add)
				wl.Post("/wishlist/remove/{slug}/", wishlistHandler.Remove)
				wl.Post("/wishlist/toggle/{slug}/", wishlistHandler.Toggle)
			})
		})
	})

	return r
}
