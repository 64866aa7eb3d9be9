package purchase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/analytics"
	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/catalog"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/grantlog"
	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/retry"
)

// attempt is a purchase on its way through the server grant.
type attempt struct {
	product  billing.PurchaseProduct
	restored bool
}

// Controller drives the purchase flow against a billing backend and the
// grant server. It implements billing.Listener.
//
// State is mutated under a single mutex. Side effects (backend calls, grant
// requests, events, analytics) are collected while the lock is held and run
// in order after it is released, so handlers may call back into the
// Controller.
type Controller struct {
	cfg       Config
	backend   billing.Backend
	sender    grant.Sender
	log       *slog.Logger
	notifier  *events.Notifier
	analytics analytics.Sink
	loader    catalog.Loader
	grants    grantlog.Log
	catalog   *catalog.Catalog

	run             Runner
	schedule        Scheduler
	backoff         retry.BackoffStrategy
	reconcileEvery  time.Duration
	onPackPurchased PackPurchasedHook
	playPassSink    PlayPassSink

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	sdk    SDKState
	flow   *flowMachine

	packID      string
	inflight    *attempt
	failed      *attempt
	consumeWait *attempt
	granted     Result

	retryCount    int
	timerGen      uint64
	stopTimer     func() bool
	stopReconcile func() bool
	requery       bool
	silent        map[string]struct{}

	playPass   bool
	noAdsToken string
}

var _ billing.Listener = (*Controller)(nil)

// New creates a Controller, registers it as the backend listener and starts
// backend initialization. It does not block: setup and the first catalog
// refresh complete through backend callbacks.
//
// A nil backend is replaced by billing.Disabled and a nil sender by a
// default grant.Client.
func New(cfg Config, backend billing.Backend, sender grant.Sender, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		backend:   backend,
		sender:    sender,
		log:       slog.Default(),
		analytics: analytics.Nop,
		loader:    catalog.MemoryLoader(nil),
		grants:    grantlog.NewMemoryLog(),
		catalog:   catalog.New(),
		run:       goRunner,
		schedule:  timerScheduler,
		backoff:   retry.CatalogRefresh(),
		ctx:       ctx,
		cancel:    cancel,
		sdk:       SDKSettingUp,
		flow:      newFlowMachine(),
		silent:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.Component("purchase"), logger.UserID(cfg.UserID))
	if c.notifier == nil {
		c.notifier = events.NewNotifier(events.WithLogger(c.log))
	}
	if c.backend == nil {
		c.backend = billing.Disabled{}
	}
	if c.sender == nil {
		c.sender = grant.NewClient(grant.WithLogger(c.log))
	}

	if c.reconcileEvery > 0 {
		c.mu.Lock()
		c.scheduleReconcileLocked()
		c.mu.Unlock()
	}

	c.backend.SetListener(c)
	c.backend.Init(ctx)
	if cfg.PlayPassProductID != "" {
		c.backend.InitPlayPass(ctx, cfg.PlayPassProductID)
	}
	return c
}

// Close stops timers and detaches the controller from the backend. Pending
// collaborator results and backend callbacks are ignored afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopBackoffLocked()
	if c.stopReconcile != nil {
		c.stopReconcile()
		c.stopReconcile = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.backend.SetListener(billing.NopListener{})
	return nil
}

// Notifier returns the event notifier the controller emits to.
func (c *Controller) Notifier() *events.Notifier {
	return c.notifier
}

// effects are side effects collected under the lock and run after it.
type effects []func()

func (fx *effects) add(f ...func()) {
	*fx = append(*fx, f...)
}

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}

// update runs fn under the lock, then runs the effects it collected.
// It does nothing once the controller is closed.
func (c *Controller) update(fn func(fx *effects)) {
	var fx effects
	c.mu.Lock()
	if !c.closed {
		fn(&fx)
	}
	c.mu.Unlock()
	fx.run()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// emit returns an effect dispatching name with payload.
func (c *Controller) emit(name events.Name, payload any) func() {
	return func() {
		c.notifier.Dispatch(c.ctx, name, payload)
	}
}

// SDKState returns the billing setup and catalog state.
func (c *Controller) SDKState() SDKState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sdk
}

// FlowState returns the visible purchase flow state.
func (c *Controller) FlowState() FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flow.current
}

// IsPurchaseFlowInProgress reports whether a client purchase, server grant
// or consume is outstanding.
func (c *Controller) IsPurchaseFlowInProgress() bool {
	return c.FlowState().InProgress()
}

// PackagesReady reports whether the last catalog refresh succeeded.
func (c *Controller) PackagesReady() bool {
	return c.SDKState() == SDKFetched
}

// PackagesFailed reports whether the last catalog refresh failed.
func (c *Controller) PackagesFailed() bool {
	return c.SDKState() == SDKFetchFailed
}

// IsStoreAvailable reports whether the billing backend can sell.
func (c *Controller) IsStoreAvailable() bool {
	return c.backend.IsEnabled()
}

// Purchases lists the purchases the user owns on the backend.
func (c *Controller) Purchases(ctx context.Context) ([]billing.Purchase, error) {
	return c.backend.Products(ctx)
}

// ConsumePurchase consumes a purchase on the backend outside any flow.
func (c *Controller) ConsumePurchase(ctx context.Context, productID, token string) error {
	if c.isClosed() {
		return ErrControllerClosed
	}
	return c.backend.ConsumePurchase(ctx, productID, token)
}

// Packs returns the catalog sorted by ascending price.
func (c *Controller) Packs() []catalog.Pack {
	return c.catalog.Packs()
}

func (c *Controller) Pack(id string) (catalog.Pack, bool) {
	return c.catalog.Pack(id)
}

func (c *Controller) ContainsPack(id string) bool {
	return c.catalog.Contains(id)
}

// SetPack inserts or replaces a pack in the catalog.
func (c *Controller) SetPack(p catalog.Pack) {
	c.catalog.Set(p)
}

// IsPlayPassActive returns the last reported play-pass status.
func (c *Controller) IsPlayPassActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playPass
}

// NoAdsPurchaseToken returns the play-pass token last reported as active.
func (c *Controller) NoAdsPurchaseToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noAdsToken
}

// CanRetry reports whether RetryPurchaseFlow would resume a failed flow.
func (c *Controller) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return (c.flow.can(trigRetryGrant) && c.failed != nil) ||
		(c.flow.can(trigRetryConsume) && c.consumeWait != nil)
}
