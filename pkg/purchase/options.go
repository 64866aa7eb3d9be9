package purchase

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/analytics"
	"github.com/dmitrymomot/iapkit/pkg/catalog"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/grantlog"
	"github.com/dmitrymomot/iapkit/pkg/retry"
)

// Runner executes a blocking collaborator call. The default runs f on a new
// goroutine.
type Runner func(f func())

// Scheduler runs f once after d and returns a function that cancels it.
// It must not call f synchronously.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

// PackPurchasedHook is called after the server granted a purchase and
// before it is consumed.
type PackPurchasedHook func(ctx context.Context, res Result)

// PlayPassSink receives play-pass status changes, e.g. to toggle ads.
type PlayPassSink func(ctx context.Context, active bool)

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNotifier sets the event notifier. By default the controller creates
// its own, available through Notifier.
func WithNotifier(n *events.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

func WithAnalytics(s analytics.Sink) Option {
	return func(c *Controller) {
		if s != nil {
			c.analytics = s
		}
	}
}

// WithLoader sets the static pack metadata source read after the billing
// backend is initialized.
func WithLoader(l catalog.Loader) Option {
	return func(c *Controller) {
		if l != nil {
			c.loader = l
		}
	}
}

// WithGrantLog sets where silently granted purchases are recorded.
func WithGrantLog(l grantlog.Log) Option {
	return func(c *Controller) {
		if l != nil {
			c.grants = l
		}
	}
}

func WithRunner(r Runner) Option {
	return func(c *Controller) {
		if r != nil {
			c.run = r
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.schedule = s
		}
	}
}

// WithBackoff sets the catalog refresh retry delays.
// Default is retry.CatalogRefresh: 10s per attempt, capped at 5 minutes.
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Controller) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithReconcileInterval periodically asks the backend for unconsumed
// purchases. Zero disables it.
func WithReconcileInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.reconcileEvery = d
		}
	}
}

func WithOnPackPurchased(h PackPurchasedHook) Option {
	return func(c *Controller) {
		c.onPackPurchased = h
	}
}

func WithPlayPassSink(s PlayPassSink) Option {
	return func(c *Controller) {
		c.playPassSink = s
	}
}

func goRunner(f func()) { go f() }

func timerScheduler(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
