package purchase

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/grantlog"
	"github.com/dmitrymomot/iapkit/pkg/logger"
)

// OnUnConsumedProductsUpdate implements billing.Listener. Each purchase is
// granted silently, without touching the visible flow. While a flow is in
// progress the list is dropped and queried again once the flow ends.
func (c *Controller) OnUnConsumedProductsUpdate(products []billing.PurchaseProduct) {
	c.update(func(fx *effects) {
		if c.flow.current.InProgress() {
			c.requery = true
			state := c.flow.current
			fx.add(func() {
				c.log.InfoContext(c.ctx, "unconsumed purchases deferred",
					logger.FlowState(state.String()),
				)
			})
			return
		}
		for _, p := range products {
			key := silentKey(p)
			if _, busy := c.silent[key]; busy {
				continue
			}
			c.silent[key] = struct{}{}
			fx.add(c.grantSilently(p))
		}
	})
}

// QueryUnconsumedPurchases asks the backend to report unconsumed purchases.
func (c *Controller) QueryUnconsumedPurchases() {
	if c.isClosed() {
		return
	}
	c.backend.QueryUnconsumedPurchases(c.ctx)
}

func silentKey(p billing.PurchaseProduct) string {
	if p.PurchaseToken != "" {
		return p.PurchaseToken
	}
	return p.ID + "/" + p.TransactionID
}

func (c *Controller) grantSilently(p billing.PurchaseProduct) func() {
	return func() {
		c.track(p.ID, StageServerStart+SuffixSilent, "")()
		c.run(func() {
			defer c.releaseSilent(p)
			resp, err := c.requestGrant(attempt{product: p})
			if c.isClosed() {
				return
			}
			c.onSilentResult(p, resp, err)
		})
	}
}

func (c *Controller) releaseSilent(p billing.PurchaseProduct) {
	c.mu.Lock()
	delete(c.silent, silentKey(p))
	c.mu.Unlock()
}

func (c *Controller) onSilentResult(p billing.PurchaseProduct, resp *grant.Response, err error) {
	failed := StageFailed + SuffixSilent
	switch {
	case err != nil:
		c.track(p.ID, failed, string(CodeConnectionFailed))()
	case resp == nil:
		c.track(p.ID, failed, string(CodeEmptyResponse))()
	case !resp.Failed():
		c.consumeSilently(p)
		entry := grantlog.Entry{
			ProductID:     p.ID,
			TransactionID: p.TransactionID,
			PurchaseToken: p.PurchaseToken,
			Grant:         resp,
			GrantedAt:     time.Now(),
		}
		if err := c.grants.Append(c.ctx, entry); err != nil {
			c.log.ErrorContext(c.ctx, "failed to record silent grant",
				logger.ProductID(p.ID),
				logger.Error(err),
			)
		}
		c.track(p.ID, StageServerSuccess+SuffixSilent, "")()
		c.notifier.Dispatch(c.ctx, events.SilentPurchaseSuccess, entry)
	case resp.Error == string(CodeDuplicateOrder):
		// already granted earlier; only the consume is missing
		c.consumeSilently(p)
		c.track(p.ID, failed, resp.Error)()
	default:
		c.track(p.ID, failed, resp.Error)()
	}
}

func (c *Controller) consumeSilently(p billing.PurchaseProduct) {
	err := c.backend.ConsumePurchase(c.ctx, p.ID, p.PurchaseToken)
	if err != nil {
		code, _ := billing.CodeOf(err)
		c.track(p.ID, StageConsumeFailed+SuffixSilent, code.String())()
		return
	}
	c.track(p.ID, StageConsumeSuccess+SuffixSilent, "")()
}

// ProductsGrantedSilently returns the silently granted purchases not yet
// cleared.
func (c *Controller) ProductsGrantedSilently(ctx context.Context) ([]grantlog.Entry, error) {
	return c.grants.Peek(ctx)
}

// ClearProductsGrantedSilently returns the silently granted purchases and
// clears them, so each is reported once.
func (c *Controller) ClearProductsGrantedSilently(ctx context.Context) ([]grantlog.Entry, error) {
	return c.grants.Drain(ctx)
}

// OnPlayPassStatusUpdate implements billing.Listener.
func (c *Controller) OnPlayPassStatusUpdate(active bool, token string) {
	c.update(func(fx *effects) {
		c.playPass = active
		if active {
			c.noAdsToken = token
		}
		fx.add(c.emit(events.PlayPassStatusUpdated, active))
		if c.playPassSink != nil {
			fx.add(func() { c.playPassSink(c.ctx, active) })
		}
		fx.add(func() {
			c.log.InfoContext(c.ctx, "play pass status updated", slog.Bool("active", active))
		})
	})
}
