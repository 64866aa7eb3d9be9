package purchase

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/logger"
)

// InitiatePurchaseFlow starts a purchase of packID. It returns
// ErrPurchaseInProgress while another flow is outstanding. A flow that
// ended in a retryable failure is discarded.
//
// PurchaseStart is emitted before the backend is asked to purchase.
func (c *Controller) InitiatePurchaseFlow(packID string) error {
	var fx effects
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.flow.current.InProgress() {
		state := c.flow.current
		c.mu.Unlock()
		c.log.InfoContext(c.ctx, "purchase rejected, flow in progress",
			logger.PackID(packID),
			logger.FlowState(state.String()),
		)
		return ErrPurchaseInProgress
	}
	if err := c.flow.fire(trigInitiate); err != nil {
		c.mu.Unlock()
		return err
	}
	c.packID = packID
	c.inflight = nil
	c.failed = nil
	c.consumeWait = nil
	c.granted = Result{}
	fx.add(
		c.track(packID, StageStart, ""),
		c.emit(events.PurchaseStart, packID),
		func() { c.backend.Purchase(c.ctx, packID) },
	)
	c.mu.Unlock()

	fx.run()
	return nil
}

// RetryPurchaseFlow resumes a flow that failed at the server grant or at
// consume. It returns ErrNothingToRetry in any other state.
func (c *Controller) RetryPurchaseFlow() error {
	var fx effects
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	switch {
	case c.flow.current == FlowServerPurchaseFailed && c.failed != nil:
		if err := c.flow.fire(trigRetryGrant); err != nil {
			c.mu.Unlock()
			return err
		}
		a := *c.failed
		c.startGrantLocked(&fx, a, SuffixRetry)
	case c.flow.current == FlowConsumeFailed && c.consumeWait != nil:
		if err := c.flow.fire(trigRetryConsume); err != nil {
			c.mu.Unlock()
			return err
		}
		a := *c.consumeWait
		fx.add(c.consume(a, SuffixRetry))
	default:
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	c.mu.Unlock()

	fx.run()
	return nil
}

// OnSuccess implements billing.Listener.
func (c *Controller) OnSuccess(p billing.PurchaseProduct) {
	c.onClientPurchase(attempt{product: p}, StageClientSuccess)
}

// OnRestored implements billing.Listener.
func (c *Controller) OnRestored(p billing.PurchaseProduct) {
	c.onClientPurchase(attempt{product: p, restored: true}, StageRestored)
}

func (c *Controller) onClientPurchase(a attempt, stage string) {
	c.update(func(fx *effects) {
		if err := c.flow.fire(trigClientSuccess); err != nil {
			fx.add(c.ignored("purchase callback", a.product.ID, err))
			return
		}
		fx.add(c.track(a.product.ID, stage, ""))
		c.startGrantLocked(fx, a, "")
	})
}

// OnFailure implements billing.Listener.
func (c *Controller) OnFailure(p billing.Product, msg string, code billing.ResponseCode) {
	c.update(func(fx *effects) {
		if err := c.flow.fire(trigClientFailed); err != nil {
			fx.add(c.ignored("purchase failure callback", p.ID, err))
			return
		}
		id := c.flowProductID(p.ID)
		res := Result{
			Outcome:    OutcomeClientFailed,
			Error:      CodeClientFailed,
			ProductID:  id,
			ExtraError: msg,
		}
		fx.add(
			c.track(id, StageFailed, msg),
			func() {
				c.log.WarnContext(c.ctx, "client purchase failed",
					logger.ProductID(id),
					slog.String("code", code.String()),
				)
			},
			c.emit(events.PurchaseComplete, res),
		)
		c.flowEndedLocked(fx)
	})
}

// OnCanceled implements billing.Listener.
func (c *Controller) OnCanceled(p billing.Product) {
	c.update(func(fx *effects) {
		if err := c.flow.fire(trigCancelled); err != nil {
			fx.add(c.ignored("purchase cancel callback", p.ID, err))
			return
		}
		id := c.flowProductID(p.ID)
		res := Result{
			Outcome:   OutcomeCancelled,
			Error:     CodeCancelled,
			ProductID: id,
		}
		fx.add(
			c.track(id, StageCancelled, ""),
			c.emit(events.PurchaseComplete, res),
		)
		c.flowEndedLocked(fx)
	})
}

// OnRestoreFailure implements billing.Listener. Restore failures do not
// affect the flow.
func (c *Controller) OnRestoreFailure(p billing.Product, msg string, code billing.ResponseCode) {
	if c.isClosed() {
		return
	}
	c.log.WarnContext(c.ctx, "restore failed",
		logger.ProductID(p.ID),
		slog.String("reason", msg),
		slog.String("code", code.String()),
	)
}

// flowProductID prefers the id reported by the backend and falls back to
// the pack the flow was started for.
func (c *Controller) flowProductID(id string) string {
	if id != "" {
		return id
	}
	return c.packID
}

// startGrantLocked moves a purchase to the server grant stage.
// The flow must already be in ServerPurchaseStart.
func (c *Controller) startGrantLocked(fx *effects, a attempt, suffix string) {
	c.inflight = &a
	c.failed = nil
	fx.add(
		c.track(a.product.ID, StageServerStart+suffix, ""),
		func() {
			c.run(func() {
				resp, err := c.requestGrant(a)
				c.onGrantResult(a, suffix, resp, err)
			})
		},
	)
}

func (c *Controller) requestGrant(a attempt) (*grant.Response, error) {
	req := grant.Request{
		UserID:        c.cfg.UserID,
		ProductID:     a.product.ID,
		OS:            c.cfg.OSName,
		Receipt:       a.product.Receipt,
		Signature:     a.product.ReceiptCipheredPayload,
		TransactionID: a.product.TransactionID,
		Restore:       a.restored,
	}
	if c.cfg.IsDebug {
		c.log.DebugContext(c.ctx, "grant request", slog.Any("request", req))
	}
	resp, err := c.sender.Send(c.ctx, c.cfg.PurchaseAPIEndpoint, req)
	if c.cfg.IsDebug {
		c.log.DebugContext(c.ctx, "grant response", slog.Any("response", resp), logger.Error(err))
	}
	return resp, err
}

func (c *Controller) onGrantResult(a attempt, suffix string, resp *grant.Response, err error) {
	c.update(func(fx *effects) {
		if c.flow.current != FlowServerPurchaseStart || c.inflight == nil ||
			c.inflight.product.PurchaseToken != a.product.PurchaseToken {
			fx.add(c.ignored("stale grant result", a.product.ID, nil))
			return
		}
		c.inflight = nil

		p := a.product
		res := resultFor(p)
		res.Retry = suffix == SuffixRetry
		res.Grant = resp

		switch {
		case err != nil:
			res.Outcome = OutcomeConnectionFailed
			res.Error = CodeConnectionFailed
			res.ExtraError = err.Error()
		case resp == nil:
			res.Outcome = OutcomeEmptyResponse
			res.Error = CodeEmptyResponse
		case resp.Failed():
			res.Outcome = OutcomeServerError
			res.Error = ErrorCode(resp.Error)
		default:
			_ = c.flow.fire(trigGranted)
			res.Outcome = OutcomeSuccess
			res.ProducePriceValue = p.PriceValue
			res.CurrencyCode = p.CurrencyCode
			res.TransactionID = p.TransactionID
			c.consumeWait = &a
			c.granted = res
			fx.add(
				c.track(p.ID, StageServerSuccess+suffix, ""),
				c.trackGranted(p),
				func() { c.backend.OnServerSuccess(c.ctx, p.PurchaseToken) },
			)
			if c.onPackPurchased != nil {
				fx.add(func() { c.onPackPurchased(c.ctx, res) })
			}
			fx.add(c.consume(a, suffix))
			return
		}

		_ = c.flow.fire(trigGrantFailed)
		c.failed = &a
		fx.add(
			c.track(p.ID, StageFailed+suffix, string(res.Error)),
			c.emit(events.PurchaseComplete, res),
		)
		c.flowEndedLocked(fx)
	})
}

// consume returns an effect that consumes a granted purchase.
func (c *Controller) consume(a attempt, suffix string) func() {
	return func() {
		c.run(func() {
			err := c.backend.ConsumePurchase(c.ctx, a.product.ID, a.product.PurchaseToken)
			c.onConsumeResult(a, suffix, err)
		})
	}
}

func (c *Controller) onConsumeResult(a attempt, suffix string, err error) {
	c.update(func(fx *effects) {
		if c.flow.current != FlowConsumeStart || c.consumeWait == nil ||
			c.consumeWait.product.PurchaseToken != a.product.PurchaseToken {
			fx.add(c.ignored("stale consume result", a.product.ID, err))
			return
		}

		res := c.granted
		res.Retry = suffix == SuffixRetry
		if err == nil {
			_ = c.flow.fire(trigConsumed)
			c.consumeWait = nil
			c.granted = Result{}
			res.Outcome = OutcomeSuccess
			res.Error = ""
			fx.add(
				c.emit(events.PurchaseComplete, res),
				c.track(a.product.ID, StageConsumeSuccess+suffix, ""),
			)
			c.flowEndedLocked(fx)
			return
		}

		code, _ := billing.CodeOf(err)
		_ = c.flow.fire(trigConsumeFailed)
		res.Outcome = OutcomeConsumeFailed
		res.Error = CodeConsumeFailed
		res.ConsumeError = code
		fx.add(
			c.emit(events.PurchaseComplete, res),
			c.track(a.product.ID, StageConsumeFailed+suffix, code.String()),
		)
		c.flowEndedLocked(fx)
	})
}

// flowEndedLocked issues the unconsumed purchase query that was deferred
// while the flow was running.
func (c *Controller) flowEndedLocked(fx *effects) {
	if !c.requery || c.flow.current.InProgress() {
		return
	}
	c.requery = false
	fx.add(func() { c.backend.QueryUnconsumedPurchases(c.ctx) })
}

func (c *Controller) ignored(what, productID string, err error) func() {
	state := c.flow.current
	return func() {
		c.log.WarnContext(c.ctx, what+" ignored",
			logger.ProductID(productID),
			logger.FlowState(state.String()),
			logger.Error(err),
		)
	}
}

var simulatedGrant = map[string]any{
	"consumables": map[string]int{"hints": 5, "retries": 2},
}

// SimulateGrant emits a successful PurchaseComplete for packID without
// touching the backend or the grant server. Fields become the grant
// response body; nil uses a small consumables bundle. Intended for tests
// and debug menus.
func (c *Controller) SimulateGrant(ctx context.Context, packID string, fields map[string]any) error {
	if c.isClosed() {
		return ErrControllerClosed
	}
	if fields == nil {
		fields = simulatedGrant
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	var resp grant.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	c.notifier.Dispatch(ctx, events.PurchaseComplete, Result{
		Outcome:   OutcomeSuccess,
		ProductID: packID,
		Grant:     &resp,
	})
	return nil
}
