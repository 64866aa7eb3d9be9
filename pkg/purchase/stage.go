package purchase

import (
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/iapkit/pkg/analytics"
	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/logger"
)

// Stage names recorded in the PurchaseVirtualCurrency analytics event.
const (
	StageStart          = "start"
	StageClientSuccess  = "client_success"
	StageFailed         = "failed"
	StageRestored       = "restored"
	StageServerStart    = "server_start"
	StageServerSuccess  = "server_success"
	StageCancelled      = "cancelled"
	StageConsumeSuccess = "consume_success"
	StageConsumeFailed  = "consume_failed"

	SuffixSilent = "_silent"
	SuffixRetry  = "_retry"
)

// track returns an effect that records a flow stage for packID. Detail is
// only set for failures.
func (c *Controller) track(packID, stage, detail string) func() {
	return func() {
		params := analytics.Params{
			analytics.ParamKingdom: packID,
			analytics.ParamPhylum:  stage,
		}
		level := slog.LevelInfo
		if detail != "" {
			params[analytics.ParamClass] = detail
			level = slog.LevelWarn
		}
		c.analytics.LogCustomEvent(c.ctx, analytics.EventPurchaseVirtualCurrency, params)
		c.log.Log(c.ctx, level, "purchase stage",
			logger.PackID(packID),
			logger.Stage(stage),
			slog.String("detail", detail),
		)
	}
}

// trackGranted returns an effect recording a successful server grant.
func (c *Controller) trackGranted(p billing.PurchaseProduct) func() {
	return func() {
		c.analytics.LogCustomEvent(c.ctx, analytics.EventServerPurchaseSuccess, analytics.Params{
			analytics.ParamKingdom: p.ID,
			analytics.ParamPhylum:  strconv.FormatFloat(p.PriceValue, 'f', -1, 64),
			analytics.ParamClass:   p.CurrencyCode,
			analytics.ParamFamily:  p.TransactionID,
		})
	}
}

// trackInitFailed returns an effect recording a failed billing setup.
func (c *Controller) trackInitFailed(reason string, err error) func() {
	return func() {
		c.analytics.LogCustomEvent(c.ctx, analytics.EventInitFailed, analytics.Params{
			analytics.ParamKingdom: reason,
		})
		c.log.ErrorContext(c.ctx, "billing setup failed",
			slog.String("reason", reason),
			logger.Error(err),
		)
	}
}
