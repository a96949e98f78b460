package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jashezan/HomifyHub/internal/service"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
	"github.com/jashezan/HomifyHub/pkg/httputil"
	"github.com/jashezan/HomifyHub/pkg/middleware"
	"github.com/jashezan/HomifyHub/pkg/pagination"
	"github.com/jashezan/HomifyHub/pkg/slug"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	service *service.WishlistService
	logger  *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(svc *service.WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{
		service: svc,
		logger:  logger,
	}
}

// WishlistMutationResponse is the body of a successful wishlist mutation.
// InWishlist is only sent by toggle.
type WishlistMutationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	WishlistCount int    `json:"wishlist_count"`
	InWishlist    *bool  `json:"in_wishlist,omitempty"`
}

// Add handles POST /carts/wishlist/add/{slug}/
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Add, false)
}

// Remove handles POST /carts/wishlist/remove/{slug}/
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Remove, false)
}

// Toggle handles POST /carts/wishlist/toggle/{slug}/
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Toggle, true)
}

// Count handles GET /carts/wishlist/count/. Guests have an empty wishlist.
func (h *WishlistHandler) Count(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if !id.Authenticated() {
		httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: 0})
		return
	}

	n, err := h.service.Count(r.Context(), id.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: n})
}

// List handles GET /carts/wishlist/
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	page, err := h.service.List(r.Context(), id.UserID, pagination.FromQuery(r.URL.Query()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

type wishlistOp func(ctx context.Context, userID, slug string) (*service.WishlistResult, error)

func (h *WishlistHandler) mutate(w http.ResponseWriter, r *http.Request, op wishlistOp, withState bool) {
	productSlug := chi.URLParam(r, "slug")
	if !slug.Valid(productSlug) {
		httputil.WriteError(w, r, apperrors.NotFound("product", productSlug), h.logger)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())

	res, err := op(r.Context(), id.UserID, productSlug)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := WishlistMutationResponse{
		Success:       true,
		Message:       res.Message,
		WishlistCount: res.Count,
	}
	if withState {
		in := res.InWishlist
		resp.InWishlist = &in
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
