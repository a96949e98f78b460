// Package syncclient runs cart and wishlist actions against the storefront
// and keeps the page's badges and notifications in step with the answers.
//
// Every mutation follows the same sequence: precondition check, sticky
// "in progress" notification, POST with the CSRF token, then exactly one
// dismissal of the sticky notification followed by a success or error
// notification. Badge counts are only ever taken from the server.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jashezan/HomifyHub/internal/browser/badge"
	"github.com/jashezan/HomifyHub/internal/browser/notify"
	"github.com/jashezan/HomifyHub/pkg/httpclient"
	"github.com/jashezan/HomifyHub/pkg/tracing"
)

// maxBody bounds how much of a response is decoded.
const maxBody = 64 << 10

// Doer sends HTTP requests. *httpclient.Guarded satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TokenSource returns the CSRF token. It is asked on every mutation.
type TokenSource interface {
	CSRFToken() string
}

// Notifier is the part of *notify.Notifier the client uses.
type Notifier interface {
	Sticky(message string, kind notify.Kind) notify.Handle
	Dismiss(h notify.Handle) bool
	Success(message string) notify.Handle
	Error(message string) notify.Handle
	Warning(message string) notify.Handle
}

// Badges is the part of *badge.Reconciler the client uses.
type Badges interface {
	NextSeq(kind badge.Kind) uint64
	ReconcileSeq(kind badge.Kind, seq uint64, count int) bool
}

// Config configures a Client.
type Config struct {
	BaseURL            string
	Authenticated      bool
	RequireAuthForCart bool
	Logger             *slog.Logger
}

// Client issues storefront actions. It is safe for concurrent use.
type Client struct {
	doer     Doer
	tokens   TokenSource
	notes    Notifier
	badges   Badges
	base     *url.URL
	auth     bool
	cartAuth bool
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a client for the storefront at cfg.BaseURL.
func New(doer Doer, tokens TokenSource, notes Notifier, badges Badges, cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		doer:     doer,
		tokens:   tokens,
		notes:    notes,
		badges:   badges,
		base:     base,
		auth:     cfg.Authenticated,
		cartAuth: cfg.RequireAuthForCart,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}, nil
}

// Result describes a successful action.
type Result struct {
	Message string
	// Count is the badge count the action produced; CountKnown is false when
	// neither the response nor the follow-up fetch supplied one.
	Count      int
	CountKnown bool
	// ItemID is the cart line an add landed on.
	ItemID int64
	// InWishlist is set by toggles.
	InWishlist *bool
}

// response is the union of the storefront's JSON answers.
type response struct {
	Success       *bool  `json:"success"`
	Message       string `json:"message"`
	Count         *int   `json:"count"`
	WishlistCount *int   `json:"wishlist_count"`
	ItemID        int64  `json:"item_id"`
	InWishlist    *bool  `json:"in_wishlist"`
}

type action struct {
	name      string
	target    string
	badge     badge.Kind
	needsAuth bool
	loginMsg  string
	pending   string
	succeeded string
	failed    string
	path      string
	form      url.Values
	countPath string
}

func (a *action) key() string { return a.name + ":" + a.target }

func (a *action) count(r *response) (int, bool) {
	if a.badge == badge.Wishlist {
		if r.WishlistCount != nil {
			return *r.WishlistCount, true
		}
		return 0, false
	}
	if r.Count != nil {
		return *r.Count, true
	}
	return 0, false
}

// run executes a mutation.
func (c *Client) run(ctx context.Context, a *action) (*Result, error) {
	log := c.logger.With("action", a.name, "target", a.target)

	if a.needsAuth && !c.auth {
		c.notes.Warning(a.loginMsg)
		syncActionsTotal.WithLabelValues(a.name, outcomeUnauthenticated).Inc()
		return nil, fmt.Errorf("%s: %w", a.name, ErrNotAuthenticated)
	}

	if !c.acquire(a.key()) {
		log.Debug("action already in flight")
		syncActionsTotal.WithLabelValues(a.name, outcomeInFlight).Inc()
		return nil, fmt.Errorf("%s %s: %w", a.name, a.target, ErrInFlight)
	}
	defer c.release(a.key())

	ctx, span := tracing.Tracer("homifyhub/syncclient").Start(ctx, a.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("storefront.action", a.name),
		attribute.String("storefront.target", a.target),
	)

	seq := c.badges.NextSeq(a.badge)
	sticky := c.notes.Sticky(a.pending, notify.Info)
	var dismissOnce sync.Once
	dismiss := func() { dismissOnce.Do(func() { c.notes.Dismiss(sticky) }) }
	defer dismiss()

	start := c.now()
	status, body, err := c.send(ctx, http.MethodPost, a.path, a.form)
	syncActionDuration.WithLabelValues(a.name).Observe(c.now().Sub(start).Seconds())
	if err != nil {
		dismiss()
		return nil, c.transportFailure(span, log, a.name, err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil || resp.Success == nil {
		if err == nil {
			err = errors.New("missing success field")
		}
		dismiss()
		return nil, c.transportFailure(span, log, a.name, fmt.Errorf("decode %d response: %w", status, err))
	}

	dismiss()
	if !*resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = a.failed
		}
		c.notes.Error(msg)
		syncActionsTotal.WithLabelValues(a.name, outcomeRejected).Inc()
		span.SetAttributes(attribute.Int("http.status_code", status))
		log.Debug("action rejected", "status", status, "message", msg)
		return nil, &RejectedError{Status: status, Message: msg}
	}

	msg := resp.Message
	if msg == "" {
		msg = a.succeeded
	}
	c.notes.Success(msg)
	syncActionsTotal.WithLabelValues(a.name, outcomeSuccess).Inc()

	result := &Result{Message: msg, ItemID: resp.ItemID, InWishlist: resp.InWishlist}
	count, ok := a.count(&resp)
	if !ok {
		// The follow-up GET is issued after the POST returned and takes its
		// own sequence number.
		seq = c.badges.NextSeq(a.badge)
		count, err = c.fetchCount(ctx, a.countPath)
		if err != nil {
			log.Error("follow-up count fetch failed", "error", err)
			return result, nil
		}
	}
	result.Count, result.CountKnown = count, true
	c.apply(a.badge, seq, count)
	return result, nil
}

func (c *Client) transportFailure(span trace.Span, log *slog.Logger, name string, err error) error {
	c.notes.Error(genericFailure)
	syncActionsTotal.WithLabelValues(name, outcomeTransport).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "transport failure")
	log.Error("storefront request failed", "error", err)
	return fmt.Errorf("%s: %w: %w", name, ErrTransport, err)
}

// refresh fetches a count and reconciles the badge without notifications.
func (c *Client) refresh(ctx context.Context, kind badge.Kind, path string) (int, error) {
	name := string(kind) + ".count"
	ctx, span := tracing.Tracer("homifyhub/syncclient").Start(ctx, name)
	defer span.End()

	seq := c.badges.NextSeq(kind)
	count, err := c.fetchCount(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count fetch failed")
		syncActionsTotal.WithLabelValues(name, outcomeTransport).Inc()
		c.logger.Error("count fetch failed", "badge", string(kind), "error", err)
		return 0, err
	}
	syncActionsTotal.WithLabelValues(name, outcomeSuccess).Inc()
	c.apply(kind, seq, count)
	return count, nil
}

func (c *Client) apply(kind badge.Kind, seq uint64, count int) {
	if !c.badges.ReconcileSeq(kind, seq, count) && (kind != badge.Wishlist || c.auth) {
		staleCountsDropped.WithLabelValues(string(kind)).Inc()
		c.logger.Debug("stale count dropped", "badge", string(kind), "seq", seq, "count", count)
	}
}

func (c *Client) fetchCount(ctx context.Context, path string) (int, error) {
	status, body, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	var resp struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode %d count: %w", ErrTransport, status, err)
	}
	if resp.Count == nil || httpclient.IsClientError(status) {
		return 0, fmt.Errorf("%w: count missing from %d response", ErrTransport, status)
	}
	return *resp.Count, nil
}

// send issues one request and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, form url.Values) (int, []byte, error) {
	target := c.base.ResolveReference(&url.URL{Path: path})

	var body io.Reader = http.NoBody
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if tok := c.tokens.CSRFToken(); tok != "" {
			req.Header.Set("X-CSRFToken", tok)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var srvErr *httpclient.ServerError
		switch {
		case errors.As(err, &srvErr):
			return srvErr.Status, nil, err
		case errors.Is(err, httpclient.ErrBreakerOpen):
			return 0, nil, fmt.Errorf("storefront unavailable: %w", err)
		default:
			return 0, nil, err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, nil, fmt.Errorf("server error %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return false
	}
	c.inFlight[key] = struct{}{}
	return true
}

func (c *Client) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}

// InFlight reports whether any action is running.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight) > 0
}
