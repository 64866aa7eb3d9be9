package purchase

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/analytics"
	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/logger"
)

// OnInitialized implements billing.Listener.
func (c *Controller) OnInitialized(success bool) {
	c.update(func(fx *effects) {
		if !success {
			c.sdk = SDKSetupFailed
			fx.add(c.trackInitFailed("billing_setup", nil))
			return
		}
		c.sdk = SDKSetUp
		fx.add(
			c.emit(events.Initialized, nil),
			func() { c.run(c.loadStatic) },
		)
	})
}

// loadStatic reads pack metadata and starts the first refresh.
func (c *Controller) loadStatic() {
	packs, err := c.loader.Load(c.ctx)
	c.update(func(fx *effects) {
		if err != nil {
			c.sdk = SDKSetupFailed
			fx.add(c.trackInitFailed("static_data", err))
			return
		}
		c.catalog.Replace(packs)
		c.log.DebugContext(c.ctx, "static packs loaded", slog.Int("count", len(packs)))
		c.startFetchLocked(fx)
	})
}

// StartPackageFetch sorts the catalog and asks the backend for live prices.
// A pending retry is cancelled.
func (c *Controller) StartPackageFetch() {
	c.update(c.startFetchLocked)
}

func (c *Controller) startFetchLocked(fx *effects) {
	c.stopBackoffLocked()
	c.catalog.SortByPrice()
	c.sdk = SDKFetching
	fx.add(func() { c.backend.Refresh(c.ctx) })
}

// OnProductRequestSuccess implements billing.Listener.
func (c *Controller) OnProductRequestSuccess(products []billing.Product) {
	c.update(func(fx *effects) {
		usable := c.catalog.Merge(products)
		if usable == 0 && c.catalog.Len() == 0 {
			c.fetchFailedLocked(fx, "no products available")
			return
		}
		c.sdk = SDKFetched
		c.retryCount = 0
		c.stopBackoffLocked()
		fx.add(
			func() {
				c.log.InfoContext(c.ctx, "catalog refreshed",
					slog.Int("usable", usable),
					slog.Int("packs", c.catalog.Len()),
				)
			},
			func() { c.notifier.Emit(c.ctx, events.PackageFetchSuccess) },
		)
	})
}

// OnProductRequestFailure implements billing.Listener.
func (c *Controller) OnProductRequestFailure(msg string) {
	c.update(func(fx *effects) {
		c.fetchFailedLocked(fx, msg)
	})
}

// fetchFailedLocked reports a failed refresh and schedules the next one.
// Refresh is retried until it succeeds.
func (c *Controller) fetchFailedLocked(fx *effects, msg string) {
	c.sdk = SDKFetchFailed
	c.retryCount++
	delay := c.backoff.NextInterval(c.retryCount)
	c.scheduleRefreshLocked(delay)

	retries := c.retryCount
	fx.add(
		c.emit(events.PackageFetchFail, msg),
		func() {
			c.analytics.LogCustomEvent(c.ctx, analytics.EventPackageFetchFailed, analytics.Params{
				analytics.ParamKingdom: msg,
			})
			c.log.WarnContext(c.ctx, "catalog refresh failed",
				slog.String("reason", msg),
				logger.RetryCount(retries),
				logger.Delay(delay),
			)
		},
	)
}

func (c *Controller) scheduleRefreshLocked(delay time.Duration) {
	c.stopBackoffLocked()
	gen := c.timerGen
	c.stopTimer = c.schedule(delay, func() { c.onBackoff(gen) })
}

// stopBackoffLocked cancels the pending refresh and invalidates a callback
// that already fired.
func (c *Controller) stopBackoffLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.timerGen++
}

func (c *Controller) onBackoff(gen uint64) {
	c.update(func(fx *effects) {
		if gen != c.timerGen {
			return
		}
		c.stopTimer = nil
		c.log.DebugContext(c.ctx, "retrying catalog refresh", logger.RetryCount(c.retryCount))
		c.startFetchLocked(fx)
	})
}

func (c *Controller) scheduleReconcileLocked() {
	c.stopReconcile = c.schedule(c.reconcileEvery, c.onReconcileTick)
}

func (c *Controller) onReconcileTick() {
	c.update(func(fx *effects) {
		c.scheduleReconcileLocked()
		if c.flow.current.InProgress() {
			c.requery = true
			return
		}
		fx.add(func() { c.backend.QueryUnconsumedPurchases(c.ctx) })
	})
}
