// Package browser wires the storefront page behaviours together. Init is the
// single entry point; it sets everything up in a fixed order so startup is
// the same on every page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jashezan/HomifyHub/internal/browser/badge"
	"github.com/jashezan/HomifyHub/internal/browser/dom"
	"github.com/jashezan/HomifyHub/internal/browser/lazyload"
	"github.com/jashezan/HomifyHub/internal/browser/notify"
	"github.com/jashezan/HomifyHub/internal/browser/quantity"
	"github.com/jashezan/HomifyHub/internal/browser/syncclient"
)

// Element actions, carried in data-action.
const (
	ActionAddToCart          = "add-to-cart"
	ActionAddBundleToCart    = "add-bundle-to-cart"
	ActionRemoveFromCart     = "remove-from-cart"
	ActionAddToWishlist      = "add-to-wishlist"
	ActionRemoveFromWishlist = "remove-from-wishlist"
	ActionToggleWishlist     = "toggle-wishlist"
	ActionQtyIncrement       = "qty-increment"
	ActionQtyDecrement       = "qty-decrement"
)

// ActiveClass marks wishlist buttons whose product is in the wishlist.
const ActiveClass = "active"

var (
	// ErrUnknownAction is returned for elements without a known data-action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrMissingControl is returned when an action names an input that is not
	// on the page.
	ErrMissingControl = errors.New("quantity control not found")
)

// Options configures Init.
type Options struct {
	RequireAuthForCart bool
	WishlistShowZero   bool
	// Renderer draws notifications. Nil draws toasts into the page.
	Renderer      notify.Renderer
	NotifyOptions []notify.Option
	// Observers watches image visibility. Nil loads every image at once.
	Observers lazyload.ObserverFactory
	Logger    *slog.Logger
}

// Storefront is an initialised page.
type Storefront struct {
	Doc        *dom.Document
	Notifier   *notify.Notifier
	Badges     *badge.Reconciler
	Quantities map[string]*quantity.Control
	Images     *lazyload.Loader
	Client     *syncclient.Client

	authenticated bool
	logger        *slog.Logger

	// mu guards Quantities once Dispatch is in use.
	mu sync.Mutex
}

// Init wires the page in order: page flags, notifications, badges, quantity
// controls, lazy images and finally the sync client.
func Init(doc *dom.Document, doer syncclient.Doer, baseURL string, opts Options) (*Storefront, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authenticated := doc.Authenticated()
	logger = logger.With("authenticated", authenticated)

	renderer := opts.Renderer
	if renderer == nil {
		renderer = notify.NewDOMRenderer(doc)
	}
	notifier := notify.New(renderer, append([]notify.Option{notify.WithLogger(logger)}, opts.NotifyOptions...)...)

	zero := map[badge.Kind]badge.ZeroPolicy{}
	if opts.WishlistShowZero {
		zero[badge.Wishlist] = badge.ShowZero
	}
	badges := badge.New(doc, badge.Config{Authenticated: authenticated, Zero: zero, Logger: logger})
	badges.InitFromPage()

	controls := quantity.BindAll(doc)
	images := lazyload.Init(doc, opts.Observers)

	client, err := syncclient.New(doer, doc, notifier, badges, syncclient.Config{
		BaseURL:            baseURL,
		Authenticated:      authenticated,
		RequireAuthForCart: opts.RequireAuthForCart,
		Logger:             logger,
	})
	if err != nil {
		notifier.Close()
		return nil, fmt.Errorf("create sync client: %w", err)
	}

	logger.Debug("storefront initialised",
		"quantity_controls", len(controls),
		"pending_images", images.Pending(),
		"cart_count", badges.Count(badge.Cart),
	)

	return &Storefront{
		Doc:           doc,
		Notifier:      notifier,
		Badges:        badges,
		Quantities:    controls,
		Images:        images,
		Client:        client,
		authenticated: authenticated,
		logger:        logger,
	}, nil
}

// Authenticated reports the page's auth flag.
func (s *Storefront) Authenticated() bool { return s.authenticated }

// Dispatch runs the action bound to el through its data-action attribute.
func (s *Storefront) Dispatch(ctx context.Context, el *dom.Element) error {
	action := el.AttrOr("data-action", "")
	switch action {
	case ActionQtyIncrement, ActionQtyDecrement:
		return s.stepQuantity(ctx, el, action == ActionQtyIncrement)
	case ActionAddToCart:
		return s.addToCart(ctx, el)
	case ActionAddBundleToCart:
		_, err := s.Client.AddBundleToCart(ctx, el.AttrOr("data-bundle", ""))
		return err
	case ActionRemoveFromCart:
		return s.removeFromCart(ctx, el)
	case ActionAddToWishlist:
		res, err := s.Client.AddToWishlist(ctx, el.AttrOr("data-slug", ""))
		if err != nil {
			return err
		}
		in := true
		if res.InWishlist != nil {
			in = *res.InWishlist
		}
		s.markWishlisted(el.AttrOr("data-slug", ""), in)
		return nil
	case ActionRemoveFromWishlist:
		if _, err := s.Client.RemoveFromWishlist(ctx, el.AttrOr("data-slug", "")); err != nil {
			return err
		}
		s.markWishlisted(el.AttrOr("data-slug", ""), false)
		return nil
	case ActionToggleWishlist:
		res, err := s.Client.ToggleWishlist(ctx, el.AttrOr("data-slug", ""))
		if err != nil {
			return err
		}
		if res.InWishlist != nil {
			s.markWishlisted(el.AttrOr("data-slug", ""), *res.InWishlist)
		}
		return nil
	default:
		return fmt.Errorf("%q: %w", action, ErrUnknownAction)
	}
}

// stepQuantity moves a quantity control by one. Cart line inputs send the new
// quantity to the storefront; product inputs only change locally.
func (s *Storefront) stepQuantity(ctx context.Context, el *dom.Element, up bool) error {
	id := el.AttrOr("data-target", "")
	ctrl, ok := s.control(id)
	if !ok {
		return fmt.Errorf("%q: %w", id, ErrMissingControl)
	}

	before := ctrl.Value()
	after := ctrl.Decrement
	if up {
		after = ctrl.Increment
	}
	v := after()
	if v == before {
		return nil
	}

	itemID, isLine := cartLineID(id)
	if !isLine {
		return nil
	}
	if _, err := s.Client.UpdateCartItem(ctx, itemID, v); err != nil {
		ctrl.Set(before)
		return err
	}
	return nil
}

func (s *Storefront) addToCart(ctx context.Context, el *dom.Element) error {
	qty, opts := 1, []syncclient.AddOption(nil)
	if id := el.AttrOr("data-quantity-input", ""); id != "" {
		ctrl, ok := s.control(id)
		if !ok {
			return fmt.Errorf("%q: %w", id, ErrMissingControl)
		}
		qty = ctrl.Value()
		opts = append(opts, syncclient.WithMaxQuantity(ctrl.Max()))
	}
	if v := el.AttrOr("data-variant", ""); v != "" {
		opts = append(opts, syncclient.WithVariant(v))
	}
	_, err := s.Client.AddToCart(ctx, el.AttrOr("data-slug", ""), qty, opts...)
	return err
}

func (s *Storefront) removeFromCart(ctx context.Context, el *dom.Element) error {
	id, err := strconv.ParseInt(el.AttrOr("data-item-id", ""), 10, 64)
	if err != nil {
		id = 0
	}
	if _, err := s.Client.RemoveFromCart(ctx, id); err != nil {
		return err
	}

	lines, _ := s.Doc.Find("//li[@data-item-id='" + strconv.FormatInt(id, 10) + "']")
	_ = s.Doc.Edit(func(tx *dom.Tx) error {
		for _, line := range lines {
			if tx.HasClass(line, "cart-line") {
				tx.Remove(line)
			}
		}
		return nil
	})
	s.mu.Lock()
	delete(s.Quantities, "cart-qty-"+strconv.FormatInt(id, 10))
	s.mu.Unlock()
	return nil
}

func (s *Storefront) control(id string) (*quantity.Control, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Quantities[id]
	return c, ok
}

// markWishlisted updates every wishlist button of the product.
func (s *Storefront) markWishlisted(productSlug string, in bool) {
	buttons, err := s.Doc.Find("//*[@data-slug=" + quote(productSlug) + "]")
	if err != nil {
		return
	}
	_ = s.Doc.Edit(func(tx *dom.Tx) error {
		for _, b := range buttons {
			action, _ := tx.Attr(b, "data-action")
			if action != ActionToggleWishlist && action != ActionAddToWishlist && action != ActionRemoveFromWishlist {
				continue
			}
			if in {
				tx.AddClass(b, ActiveClass)
				tx.SetAttr(b, "aria-pressed", "true")
			} else {
				tx.RemoveClass(b, ActiveClass)
				tx.SetAttr(b, "aria-pressed", "false")
			}
		}
		return nil
	})
}

// Close stops pending notification timers.
func (s *Storefront) Close() {
	s.Notifier.Close()
}

func cartLineID(inputID string) (int64, bool) {
	rest, ok := strings.CutPrefix(inputID, "cart-qty-")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// quote returns s as an XPath string literal. Slugs never contain quotes, so
// anything that does matches nothing.
func quote(s string) string {
	if strings.ContainsAny(s, `'"`) {
		return "''"
	}
	return "'" + s + "'"
}
