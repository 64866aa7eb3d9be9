package grant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/requestid"
	"github.com/dmitrymomot/iapkit/pkg/retry"
)

const maxErrorBody = 200

// Sender performs a grant call. See the package documentation for the
// meaning of each result shape.
type Sender interface {
	Send(ctx context.Context, endpoint string, req Request) (*Response, error)
}

// Client is the HTTP Sender.
type Client struct {
	rc         *resty.Client
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    retry.BackoffStrategy
	breaker    *retry.CircuitBreaker
	secret     string
	userAgent  string
	headers    map[string]string
	log        *slog.Logger
}

var _ Sender = (*Client)(nil)

// NewClient creates a grant client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:   15 * time.Second,
		backoff:   retry.DefaultBackoff(),
		userAgent: "iapkit-grant/1.0",
		headers:   make(map[string]string),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.rc = resty.NewWithClient(c.httpClient)
	} else {
		c.rc = resty.New()
	}
	c.rc.SetTimeout(c.timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent).
		SetHeaders(c.headers)
	return c
}

// Send posts req to endpoint.
func (c *Client) Send(ctx context.Context, endpoint string, req Request) (*Response, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if req.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidRequest)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	ctx, _ = requestid.Ensure(ctx)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrConnectionFailed, ctx.Err())
			case <-time.After(c.backoff.NextInterval(attempt)):
			}
		}

		resp, err := c.attempt(ctx, endpoint, payload)
		if err == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return resp, nil
		}

		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		lastErr = err
		c.log.WarnContext(ctx, "grant attempt failed",
			logger.ProductID(req.ProductID),
			logger.TransactionID(req.TransactionID),
			slog.Int("attempt", attempt+1),
			logger.Error(err),
		)
		if errors.Is(err, ErrInvalidResponse) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, endpoint string, payload []byte) (*Response, error) {
	r := c.rc.R().SetContext(ctx).
		SetHeader(HeaderRequestID, requestid.FromContext(ctx)).
		SetBody(payload)
	if c.secret != "" {
		r.SetHeaders(Sign(c.secret, payload, time.Now()))
	}

	res, err := r.Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	body := bytes.TrimSpace(res.Body())
	status := res.StatusCode()

	if len(body) == 0 || string(body) == "null" {
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: status %d", ErrConnectionFailed, status)
		}
		return nil, nil
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: status %d: %s", ErrConnectionFailed, status, sanitize(body))
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, sanitize(body))
	}

	// A 5xx without a server error code is an infrastructure failure, not a
	// grant decision.
	if status >= http.StatusInternalServerError && out.Error == "" {
		return nil, fmt.Errorf("%w: status %d", ErrConnectionFailed, status)
	}
	return &out, nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidEndpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidEndpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidEndpoint)
	}
	return nil
}

func sanitize(body []byte) string {
	s := strings.ReplaceAll(string(body), "\n", " ")
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
