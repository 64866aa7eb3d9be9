package grant

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/retry"
)

// Config holds grant client settings loaded from the environment.
type Config struct {
	Timeout          time.Duration `env:"GRANT_TIMEOUT" envDefault:"15s"`
	MaxRetries       int           `env:"GRANT_MAX_RETRIES" envDefault:"0"`
	SigningSecret    string        `env:"GRANT_SIGNING_SECRET"`
	BreakerFailures  int           `env:"GRANT_BREAKER_FAILURES" envDefault:"5"`
	BreakerSuccesses int           `env:"GRANT_BREAKER_SUCCESSES" envDefault:"1"`
	BreakerRecovery  time.Duration `env:"GRANT_BREAKER_RECOVERY" envDefault:"30s"`
	UserAgent        string        `env:"GRANT_USER_AGENT" envDefault:"iapkit-grant/1.0"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-attempt timeout. Default is 15 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries retries transport failures up to n times using strategy.
// Structured responses, including server-reported errors, are never retried.
func WithRetries(n int, strategy retry.BackoffStrategy) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if strategy != nil {
			c.backoff = strategy
		}
	}
}

// WithCircuitBreaker guards the endpoint with cb.
func WithCircuitBreaker(cb *retry.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithSigningSecret signs every request body with HMAC-SHA256.
func WithSigningSecret(secret string) Option {
	return func(c *Client) {
		c.secret = secret
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if key != "" && value != "" {
			c.headers[key] = value
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// FromConfig translates cfg into client options.
func FromConfig(cfg Config) []Option {
	opts := []Option{
		WithTimeout(cfg.Timeout),
		WithRetries(cfg.MaxRetries, nil),
		WithUserAgent(cfg.UserAgent),
	}
	if cfg.SigningSecret != "" {
		opts = append(opts, WithSigningSecret(cfg.SigningSecret))
	}
	if cfg.BreakerFailures > 0 {
		opts = append(opts, WithCircuitBreaker(
			retry.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerSuccesses, cfg.BreakerRecovery),
		))
	}
	return opts
}
