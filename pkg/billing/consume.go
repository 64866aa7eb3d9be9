package billing

import (
	"context"
	"sync"
)

// ConsumeTracker correlates asynchronous consume results with the blocking
// ConsumePurchase call waiting for them. At most one consume per product is
// outstanding, and each is resolved exactly once.
type ConsumeTracker struct {
	mu      sync.Mutex
	pending map[string]chan error
}

// NewConsumeTracker creates an empty tracker.
func NewConsumeTracker() *ConsumeTracker {
	return &ConsumeTracker{pending: make(map[string]chan error)}
}

// Begin registers a pending consume for productID and returns a wait
// function that blocks until Resolve is called or ctx is done.
func (t *ConsumeTracker) Begin(productID string) (func(ctx context.Context) error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[productID]; ok {
		return nil, ErrConsumeInFlight
	}
	ch := make(chan error, 1)
	t.pending[productID] = ch

	wait := func(ctx context.Context) error {
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			t.mu.Lock()
			if t.pending[productID] == ch {
				delete(t.pending, productID)
			}
			t.mu.Unlock()
			return ctx.Err()
		}
	}
	return wait, nil
}

// Resolve completes the pending consume for productID.
// A nil result means the platform consumed the purchase.
func (t *ConsumeTracker) Resolve(productID string, result error) error {
	t.mu.Lock()
	ch, ok := t.pending[productID]
	if ok {
		delete(t.pending, productID)
	}
	t.mu.Unlock()

	if !ok {
		return ErrUnmatchedConsume
	}
	ch <- result
	return nil
}

// Pending reports whether a consume for productID is outstanding.
func (t *ConsumeTracker) Pending(productID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[productID]
	return ok
}
