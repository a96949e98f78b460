package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/term"

	"github.com/jashezan/HomifyHub/internal/browser"
	"github.com/jashezan/HomifyHub/internal/browser/badge"
	"github.com/jashezan/HomifyHub/internal/browser/dom"
	"github.com/jashezan/HomifyHub/internal/browser/notify"
	"github.com/jashezan/HomifyHub/internal/browser/syncclient"
	"github.com/jashezan/HomifyHub/internal/config"
	"github.com/jashezan/HomifyHub/pkg/httpclient"
	"github.com/jashezan/HomifyHub/pkg/logger"
	"github.com/jashezan/HomifyHub/pkg/middleware"
	"github.com/jashezan/HomifyHub/pkg/tracing"
)

const usage = `usage: syncctl [flags] <command> [args]

commands:
  add <slug> [qty]   add a product to the cart
  bundle <slug>      add a bundle to the cart
  remove <item-id>   remove a cart line
  wishlist <slug>    add a product to the wishlist
  unwishlist <slug>  remove a product from the wishlist
  toggle <slug>      toggle a product in the wishlist
  counts             refresh and print the badge counts

flags:
`

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !notified(err) {
			fmt.Fprintln(os.Stderr, "syncctl:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("syncctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "storefront base URL")
	fs.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "access token for signed-in actions")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout")
	fs.BoolVar(&cfg.RequireAuthForCart, "require-auth-cart", cfg.RequireAuthForCart, "refuse cart actions for guests")
	fs.BoolVar(&cfg.WishlistShowZero, "show-zero-wishlist", cfg.WishlistShowZero, "keep the wishlist badge visible at zero")
	noColor := fs.Bool("no-color", false, "disable coloured output")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	log := logger.NewText(cfg.LogLevel, stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := tracing.Setup(ctx, cfg.Tracing())
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	client, err := newHTTPClient(cfg, log)
	if err != nil {
		return err
	}

	doc, err := fetchPage(ctx, client, cfg.BaseURL)
	if err != nil {
		return err
	}

	color := !*noColor && isTerminal(stdout)
	sf, err := browser.Init(doc, client, cfg.BaseURL, browser.Options{
		RequireAuthForCart: cfg.RequireAuthForCart,
		WishlistShowZero:   cfg.WishlistShowZero,
		Renderer:           notify.NewWriterRenderer(stdout, color),
		Logger:             log,
	})
	if err != nil {
		return err
	}
	defer sf.Close()

	if err := execute(ctx, sf, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
		}
		if client.State() == gobreaker.StateOpen {
			log.Warn("storefront breaker is open, requests fail fast until it cools down",
				slog.Duration("cooldown", cfg.BreakerTimeout))
		}
		printCounts(stdout, sf)
		return err
	}
	printCounts(stdout, sf)
	return nil
}

func newHTTPClient(cfg *config.ClientConfig, log *slog.Logger) (*httpclient.Guarded, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cfg.AccessToken != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		jar.SetCookies(base, []*http.Cookie{{
			Name:  middleware.TokenCookie,
			Value: cfg.AccessToken,
			Path:  "/",
		}})
	}

	hc := cfg.HTTPClient()
	hc.Jar = jar
	return httpclient.Guard(httpclient.New(hc), cfg.Breaker(), log), nil
}

// fetchPage loads the storefront page, which also sets the session and CSRF
// cookies in the jar.
func fetchPage(ctx context.Context, client *httpclient.Guarded, baseURL string) (*dom.Document, error) {
	resp, err := client.Get(ctx, baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("load storefront page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load storefront page: status %d", resp.StatusCode)
	}
	doc, err := dom.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse storefront page: %w", err)
	}
	return doc, nil
}

func execute(ctx context.Context, sf *browser.Storefront, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		if len(rest) < 1 || len(rest) > 2 {
			return errUsage
		}
		qty := 1
		if len(rest) == 2 {
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("quantity %q: %w", rest[1], err)
			}
			qty = n
		}
		return addToCart(ctx, sf, rest[0], qty)

	case "bundle":
		if len(rest) != 1 {
			return errUsage
		}
		if el := findAction(sf.Doc, browser.ActionAddBundleToCart, "data-bundle", rest[0]); el != nil {
			return sf.Dispatch(ctx, el)
		}
		_, err := sf.Client.AddBundleToCart(ctx, rest[0])
		return err

	case "remove":
		if len(rest) != 1 {
			return errUsage
		}
		if el := findAction(sf.Doc, browser.ActionRemoveFromCart, "data-item-id", rest[0]); el != nil {
			return sf.Dispatch(ctx, el)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("item id %q: %w", rest[0], err)
		}
		_, err = sf.Client.RemoveFromCart(ctx, id)
		return err

	case "wishlist":
		if len(rest) != 1 {
			return errUsage
		}
		_, err := sf.Client.AddToWishlist(ctx, rest[0])
		return err

	case "unwishlist":
		if len(rest) != 1 {
			return errUsage
		}
		if el := findAction(sf.Doc, browser.ActionRemoveFromWishlist, "data-slug", rest[0]); el != nil {
			return sf.Dispatch(ctx, el)
		}
		_, err := sf.Client.RemoveFromWishlist(ctx, rest[0])
		return err

	case "toggle":
		if len(rest) != 1 {
			return errUsage
		}
		if el := findAction(sf.Doc, browser.ActionToggleWishlist, "data-slug", rest[0]); el != nil {
			return sf.Dispatch(ctx, el)
		}
		_, err := sf.Client.ToggleWishlist(ctx, rest[0])
		return err

	case "counts":
		if len(rest) != 0 {
			return errUsage
		}
		if _, err := sf.Client.RefreshCartCount(ctx); err != nil {
			return err
		}
		if sf.Authenticated() {
			if _, err := sf.Client.RefreshWishlistCount(ctx); err != nil {
				return err
			}
		}
		return nil

	default:
		return errUsage
	}
}

// addToCart goes through the product card when the page shows the product,
// so the input's bounds apply.
func addToCart(ctx context.Context, sf *browser.Storefront, productSlug string, qty int) error {
	el := findAction(sf.Doc, browser.ActionAddToCart, "data-slug", productSlug)
	if el == nil {
		_, err := sf.Client.AddToCart(ctx, productSlug, qty)
		return err
	}
	if ctrl, ok := sf.Quantities[el.AttrOr("data-quantity-input", "")]; ok {
		ctrl.Set(qty)
	}
	return sf.Dispatch(ctx, el)
}

func findAction(doc *dom.Document, action, attr, value string) *dom.Element {
	els, err := doc.Find("//*[@data-action='" + action + "']")
	if err != nil {
		return nil
	}
	for _, el := range els {
		if el.AttrOr(attr, "") == value {
			return el
		}
	}
	return nil
}

func printCounts(w io.Writer, sf *browser.Storefront) {
	wishlist := "-"
	if sf.Authenticated() {
		wishlist = strconv.Itoa(sf.Badges.Count(badge.Wishlist))
	}
	fmt.Fprintf(w, "cart: %d  wishlist: %s\n", sf.Badges.Count(badge.Cart), wishlist)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// notified reports whether a notification already described err.
func notified(err error) bool {
	if _, ok := syncclient.IsRejected(err); ok {
		return true
	}
	return errors.Is(err, syncclient.ErrNotAuthenticated) || errors.Is(err, syncclient.ErrTransport)
}
