package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jashezan/HomifyHub/internal/service"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
	"github.com/jashezan/HomifyHub/pkg/httputil"
	"github.com/jashezan/HomifyHub/pkg/middleware"
	"github.com/jashezan/HomifyHub/pkg/slug"
	"github.com/jashezan/HomifyHub/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the form body for adding a product to the cart.
type AddItemRequest struct {
	Quantity int    `form:"quantity" json:"quantity" validate:"gte=1,lte=999"`
	Variant  string `form:"variant" json:"variant" validate:"max=64"`
}

// DecodeForm fills the request from form values. A missing quantity means 1.
func (req *AddItemRequest) DecodeForm(values url.Values) error {
	req.Quantity = 1
	if v := strings.TrimSpace(values.Get("quantity")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.InvalidInput("Quantity must be a whole number.")
		}
		req.Quantity = n
	}
	req.Variant = strings.TrimSpace(values.Get("variant"))
	return nil
}

// UpdateQuantityRequest is the form body for changing a line's quantity.
type UpdateQuantityRequest struct {
	Quantity int `form:"quantity" json:"quantity" validate:"gte=0,lte=999"`
}

// DecodeForm fills the request from form values. Quantity is required.
func (req *UpdateQuantityRequest) DecodeForm(values url.Values) error {
	v := strings.TrimSpace(values.Get("quantity"))
	if v == "" {
		return apperrors.InvalidInput("Quantity is required.")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return apperrors.InvalidInput("Quantity must be a whole number.")
	}
	req.Quantity = n
	return nil
}

// --- Responses ---

// CartMutationResponse is the body of a successful cart mutation. Count is
// the new cart badge value.
type CartMutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	ItemID  int64  `json:"item_id,omitempty"`
}

// CountResponse carries a badge count.
type CountResponse struct {
	Count int `json:"count"`
}

// --- Handlers ---

// AddItem handles POST /carts/add/{slug}/
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	productSlug := chi.URLParam(r, "slug")
	if !slug.Valid(productSlug) {
		httputil.WriteError(w, r, apperrors.NotFound("product", productSlug), h.logger)
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, item, err := h.service.AddItem(r.Context(), shopperKey(r), service.AddItemInput{
		Slug:     productSlug,
		Quantity: req.Quantity,
		Variant:  req.Variant,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CartMutationResponse{
		Success: true,
		Message: service.MsgAddedToCart,
		Count:   cart.Count(),
		ItemID:  item.ID,
	})
}

// AddBundle handles POST /carts/add-bundle/{slug}/
func (h *CartHandler) AddBundle(w http.ResponseWriter, r *http.Request) {
	bundleSlug := chi.URLParam(r, "slug")
	if !slug.Valid(bundleSlug) {
		httputil.WriteError(w, r, apperrors.NotFound("bundle", bundleSlug), h.logger)
		return
	}

	cart, item, err := h.service.AddBundle(r.Context(), shopperKey(r), bundleSlug)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CartMutationResponse{
		Success: true,
		Message: service.MsgBundleAdded,
		Count:   cart.Count(),
		ItemID:  item.ID,
	})
}

// RemoveItem handles POST /carts/remove/{item_id}/
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParseItemID(w, chi.URLParam(r, "item_id"))
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), shopperKey(r), itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CartMutationResponse{
		Success: true,
		Message: service.MsgRemovedFromCart,
		Count:   cart.Count(),
	})
}

// UpdateItemQuantity handles POST /carts/update/{item_id}/
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParseItemID(w, chi.URLParam(r, "item_id"))
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), shopperKey(r), itemID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	msg := service.MsgCartUpdated
	if req.Quantity == 0 {
		msg = service.MsgRemovedFromCart
	}
	httputil.WriteJSON(w, http.StatusOK, CartMutationResponse{
		Success: true,
		Message: msg,
		Count:   cart.Count(),
	})
}

// Count handles GET /carts/count/
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context(), shopperKey(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: n})
}

// shopperKey returns the cart owner of the request. Session middleware
// guarantees an identity on every storefront route.
func shopperKey(r *http.Request) string {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id.Key()
}
