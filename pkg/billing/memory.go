package billing

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Outcome selects how the Memory backend answers the next Purchase call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancel
	OutcomeFail
	OutcomeRestore
	OutcomeRestoreFail
)

// Memory is an in-process store. It keeps a product catalog and the set of
// owned, unconsumed purchases, and answers Purchase calls according to a
// queue of scripted outcomes (success when the queue is empty).
//
// Callbacks are delivered synchronously on the calling goroutine.
type Memory struct {
	mu          sync.Mutex
	listener    Listener
	enabled     bool
	initialized bool
	products    []Product
	owned       []PurchaseProduct
	acked       map[string]bool
	outcomes    []Outcome
	refreshErrs []string
	consumeErrs []ResponseCode
	passActive  bool
	passToken   string
	tracker     *ConsumeTracker
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an enabled in-process store selling products.
func NewMemory(products ...Product) *Memory {
	return &Memory{
		enabled:  true,
		products: slices.Clone(products),
		acked:    make(map[string]bool),
		tracker:  NewConsumeTracker(),
	}
}

// SetEnabled toggles store availability.
func (m *Memory) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// SetProducts replaces the store catalog.
func (m *Memory) SetProducts(products ...Product) {
	m.mu.Lock()
	m.products = slices.Clone(products)
	m.mu.Unlock()
}

// QueueOutcome appends outcomes consumed by subsequent Purchase calls.
func (m *Memory) QueueOutcome(o ...Outcome) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, o...)
	m.mu.Unlock()
}

// FailNextRefresh makes the next Refresh report a failure with msg.
func (m *Memory) FailNextRefresh(msg string) {
	m.mu.Lock()
	m.refreshErrs = append(m.refreshErrs, msg)
	m.mu.Unlock()
}

// FailNextConsume makes the next ConsumePurchase fail with code.
func (m *Memory) FailNextConsume(code ResponseCode) {
	m.mu.Lock()
	m.consumeErrs = append(m.consumeErrs, code)
	m.mu.Unlock()
}

// AddUnconsumed records an owned purchase the app has not granted yet,
// as if it had been bought on another device or before a crash.
func (m *Memory) AddUnconsumed(productID string) PurchaseProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.newPurchaseLocked(productID)
	m.owned = append(m.owned, p)
	return p
}

// PushUnconsumed delivers the current unconsumed purchases to the listener
// without being asked, like a platform purchase-updated callback.
func (m *Memory) PushUnconsumed() {
	m.mu.Lock()
	l, owned := m.listener, slices.Clone(m.owned)
	m.mu.Unlock()
	if l != nil {
		l.OnUnConsumedProductsUpdate(owned)
	}
}

// SetPlayPass updates the subscription status and notifies the listener
// once InitPlayPass has been called.
func (m *Memory) SetPlayPass(active bool, token string) {
	m.mu.Lock()
	m.passActive, m.passToken = active, token
	l, init := m.listener, m.initialized
	m.mu.Unlock()
	if l != nil && init {
		l.OnPlayPassStatusUpdate(active, token)
	}
}

// Acknowledged reports whether OnServerSuccess was called for token.
func (m *Memory) Acknowledged(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked[token]
}

// Unconsumed returns the owned purchases not yet consumed.
func (m *Memory) Unconsumed() []PurchaseProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.owned)
}

func (m *Memory) SetListener(l Listener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

func (m *Memory) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Memory) Init(context.Context) {
	m.mu.Lock()
	l, ok := m.listener, m.enabled
	m.mu.Unlock()
	if l != nil {
		l.OnInitialized(ok)
	}
}

func (m *Memory) InitPlayPass(context.Context, string) {
	m.mu.Lock()
	m.initialized = true
	l, active, token := m.listener, m.passActive, m.passToken
	m.mu.Unlock()
	if l != nil {
		l.OnPlayPassStatusUpdate(active, token)
	}
}

func (m *Memory) Refresh(context.Context) {
	m.mu.Lock()
	l := m.listener
	var failMsg string
	failed := len(m.refreshErrs) > 0
	if failed {
		failMsg, m.refreshErrs = m.refreshErrs[0], m.refreshErrs[1:]
	}
	products := slices.Clone(m.products)
	m.mu.Unlock()

	if l == nil {
		return
	}
	if failed {
		l.OnProductRequestFailure(failMsg)
		return
	}
	l.OnProductRequestSuccess(products)
}

func (m *Memory) Purchase(_ context.Context, packID string) {
	m.mu.Lock()
	l := m.listener
	outcome := OutcomeSuccess
	if len(m.outcomes) > 0 {
		outcome, m.outcomes = m.outcomes[0], m.outcomes[1:]
	}
	product, found := m.productLocked(packID)
	var bought PurchaseProduct
	if found && (outcome == OutcomeSuccess || outcome == OutcomeRestore) {
		bought = m.newPurchaseLocked(packID)
		m.owned = append(m.owned, bought)
	}
	m.mu.Unlock()

	if l == nil {
		return
	}
	if !found {
		l.OnFailure(Product{ID: packID}, ErrPackNotFound.Error(), ResponseItemUnavailable)
		return
	}
	switch outcome {
	case OutcomeCancel:
		l.OnCanceled(product)
	case OutcomeFail:
		l.OnFailure(product, "purchase failed", ResponseError)
	case OutcomeRestore:
		l.OnRestored(bought)
	case OutcomeRestoreFail:
		l.OnRestoreFailure(product, "restore failed", ResponseItemNotOwned)
	default:
		l.OnSuccess(bought)
	}
}

// ConsumePurchase removes the purchase with token from the owned set.
func (m *Memory) ConsumePurchase(ctx context.Context, productID, token string) error {
	wait, err := m.tracker.Begin(productID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	var result error
	if len(m.consumeErrs) > 0 {
		var code ResponseCode
		code, m.consumeErrs = m.consumeErrs[0], m.consumeErrs[1:]
		result = NewError(code, "consume rejected")
	} else {
		idx := slices.IndexFunc(m.owned, func(p PurchaseProduct) bool { return p.PurchaseToken == token })
		if idx < 0 {
			result = NewError(ResponseItemNotOwned, ErrNotOwned.Error())
		} else {
			m.owned = slices.Delete(m.owned, idx, idx+1)
		}
	}
	m.mu.Unlock()

	if err := m.tracker.Resolve(productID, result); err != nil {
		return err
	}
	return wait(ctx)
}

func (m *Memory) Products(context.Context) ([]Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Purchase, 0, len(m.owned))
	for _, p := range m.owned {
		out = append(out, Purchase{Token: p.PurchaseToken, ID: p.ID})
	}
	return out, nil
}

func (m *Memory) QueryUnconsumedPurchases(context.Context) {
	m.PushUnconsumed()
}

func (m *Memory) OnServerSuccess(_ context.Context, token string) {
	m.mu.Lock()
	m.acked[token] = true
	m.mu.Unlock()
}

func (m *Memory) productLocked(id string) (Product, bool) {
	idx := slices.IndexFunc(m.products, func(p Product) bool { return p.ID == id })
	if idx < 0 {
		return Product{}, false
	}
	return m.products[idx], true
}

func (m *Memory) newPurchaseLocked(productID string) PurchaseProduct {
	product, ok := m.productLocked(productID)
	if !ok {
		product = Product{ID: productID}
	}
	return PurchaseProduct{
		Product:                product,
		TransactionID:          "GPA." + uuid.NewString(),
		Receipt:                uuid.NewString(),
		ReceiptCipheredPayload: uuid.NewString(),
		PurchaseToken:          uuid.NewString(),
	}
}
