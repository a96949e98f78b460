package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/jashezan/HomifyHub/pkg/config"
	"github.com/jashezan/HomifyHub/pkg/httpclient"
	"github.com/jashezan/HomifyHub/pkg/tracing"
)

// ClientConfig holds configuration for the headless sync client.
type ClientConfig struct {
	BaseURL  string `env:"STOREFRONT_BASE_URL" envDefault:"http://localhost:8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`

	Timeout            time.Duration `env:"SYNC_TIMEOUT" envDefault:"10s"`
	RequireAuthForCart bool          `env:"SYNC_REQUIRE_AUTH_FOR_CART" envDefault:"false"`
	WishlistShowZero   bool          `env:"SYNC_WISHLIST_SHOW_ZERO" envDefault:"false"`

	// Access token sent as the access_token cookie, for signed-in actions.
	AccessToken string `env:"SYNC_ACCESS_TOKEN" envDefault:""`

	// OTLP/HTTP collector for action spans. Empty only propagates trace
	// context to the storefront.
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Circuit breaker
	BreakerTimeout      time.Duration `env:"SYNC_BREAKER_TIMEOUT" envDefault:"15s"`
	BreakerFailureRatio float64       `env:"SYNC_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"SYNC_BREAKER_MIN_REQUESTS" envDefault:"5"`
}

// LoadClient reads client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load sync client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants. Callers that override fields
// from flags validate again afterwards.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("STOREFRONT_BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("SYNC_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	return nil
}

// HTTPClient returns the HTTP client settings. Retries stay off.
func (c *ClientConfig) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.Timeout
	return hc
}

// Tracing returns the OpenTelemetry settings for syncctl.
func (c *ClientConfig) Tracing() tracing.Settings {
	return tracing.Settings{Service: "syncctl", Endpoint: c.OTELEndpoint, Ratio: 1}
}

// Breaker returns the circuit breaker settings.
func (c *ClientConfig) Breaker() httpclient.BreakerConfig {
	cb := httpclient.DefaultBreakerConfig("storefront")
	cb.Cooldown = c.BreakerTimeout
	cb.TripRatio = c.BreakerFailureRatio
	cb.MinRequests = c.BreakerMinRequests
	return cb
}
