package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the breaker in front of the storefront.
type BreakerConfig struct {
	Name string
	// HalfOpenRequests is how many requests a half-open breaker lets through.
	HalfOpenRequests uint32
	// Window clears the closed-state counts. Zero keeps them forever.
	Window time.Duration
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
	// TripRatio of failed requests opens the breaker once MinRequests have
	// been seen in the window.
	TripRatio   float64
	MinRequests uint32
}

// DefaultBreakerConfig returns the sync client's defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		Window:           time.Minute,
		Cooldown:         15 * time.Second,
		TripRatio:        0.5,
		MinRequests:      5,
	}
}

// ErrBreakerOpen is returned without a request when the breaker is open.
var ErrBreakerOpen = gobreaker.ErrOpenState

// breakerState follows gobreaker's numbering: 0 closed, 1 half-open, 2 open.
var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "storefront_client_breaker_state",
		Help: "Sync client breaker state (0 closed, 1 half-open, 2 open).",
	},
	[]string{"name"},
)

// Guarded is a Client behind a circuit breaker. Transport errors and 5xx
// responses count against the storefront; a 5xx comes back as *ServerError.
// 4xx responses are the storefront answering and pass through untouched.
type Guarded struct {
	inner *Client
	cb    *gobreaker.CircuitBreaker[*http.Response]
}

// Guard puts c behind a breaker configured by cfg.
func Guard(c *Client, cfg BreakerConfig, logger *slog.Logger) *Guarded {
	state := breakerState.WithLabelValues(cfg.Name)
	state.Set(float64(gobreaker.StateClosed))

	return &Guarded{
		inner: c,
		cb: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.HalfOpenRequests,
			Interval:    cfg.Window,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(n gobreaker.Counts) bool {
				return n.Requests >= cfg.MinRequests &&
					float64(n.TotalFailures) >= cfg.TripRatio*float64(n.Requests)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("storefront breaker changed state",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				state.Set(float64(to))
			},
		}),
	}
}

// Do sends req through the breaker.
func (g *Guarded) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return g.cb.Execute(func() (*http.Response, error) {
		resp, err := g.inner.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, newServerError(resp)
		}
		return resp, nil
	})
}

// Get fetches url through the breaker.
func (g *Guarded) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return g.Do(ctx, req)
}

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

// Jar returns the inner client's cookie jar.
func (g *Guarded) Jar() http.CookieJar { return g.inner.Jar() }
