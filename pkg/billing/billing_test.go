package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/iapkit/pkg/billing"
)

type recorder struct {
	mu         sync.Mutex
	calls      []string
	initOK     bool
	success    []billing.PurchaseProduct
	products   []billing.Product
	unconsumed []billing.PurchaseProduct
	passActive bool
	passToken  string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) OnInitialized(ok bool) {
	r.initOK = ok
	r.add("initialized")
}
func (r *recorder) OnSuccess(p billing.PurchaseProduct) {
	r.success = append(r.success, p)
	r.add("success:" + p.ID)
}
func (r *recorder) OnFailure(p billing.Product, _ string, code billing.ResponseCode) {
	r.add(fmt.Sprintf("failure:%s:%s", p.ID, code))
}
func (r *recorder) OnCanceled(p billing.Product) { r.add("canceled:" + p.ID) }
func (r *recorder) OnRestored(p billing.PurchaseProduct) { r.add("restored:" + p.ID) }
func (r *recorder) OnRestoreFailure(p billing.Product, _ string, _ billing.ResponseCode) {
	r.add("restore_failure:" + p.ID)
}
func (r *recorder) OnProductRequestSuccess(p []billing.Product) {
	r.products = p
	r.add("products")
}
func (r *recorder) OnProductRequestFailure(msg string) { r.add("products_failed:" + msg) }
func (r *recorder) OnPlayPassStatusUpdate(active bool, token string) {
	r.passActive, r.passToken = active, token
	r.add("playpass")
}
func (r *recorder) OnUnConsumedProductsUpdate(p []billing.PurchaseProduct) {
	r.unconsumed = p
	r.add("unconsumed")
}

func TestError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", billing.NewError(billing.ResponseItemNotOwned, "gone"))
	code, ok := billing.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, billing.ResponseItemNotOwned, code)
	assert.Contains(t, err.Error(), "item_not_owned")

	code, ok = billing.CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, billing.ResponseError, code)
}

func TestResponseCodeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", billing.ResponseOK.String())
	assert.Equal(t, "service_timeout", billing.ResponseServiceTimeout.String())
	assert.Equal(t, "code_42", billing.ResponseCode(42).String())
}

func TestConsumeTracker(t *testing.T) {
	t.Parallel()

	t.Run("resolves once", func(t *testing.T) {
		t.Parallel()
		tr := billing.NewConsumeTracker()
		wait, err := tr.Begin("coins")
		require.NoError(t, err)
		assert.True(t, tr.Pending("coins"))

		require.NoError(t, tr.Resolve("coins", nil))
		assert.ErrorIs(t, tr.Resolve("coins", nil), billing.ErrUnmatchedConsume)
		assert.NoError(t, wait(context.Background()))
		assert.False(t, tr.Pending("coins"))
	})

	t.Run("rejects concurrent consume for same product", func(t *testing.T) {
		t.Parallel()
		tr := billing.NewConsumeTracker()
		_, err := tr.Begin("coins")
		require.NoError(t, err)
		_, err = tr.Begin("coins")
		assert.ErrorIs(t, err, billing.ErrConsumeInFlight)
	})

	t.Run("delivers failure from another goroutine", func(t *testing.T) {
		t.Parallel()
		tr := billing.NewConsumeTracker()
		wait, err := tr.Begin("gems")
		require.NoError(t, err)
		go func() {
			_ = tr.Resolve("gems", billing.NewError(billing.ResponseError, "nope"))
		}()
		err = wait(context.Background())
		code, ok := billing.CodeOf(err)
		assert.True(t, ok)
		assert.Equal(t, billing.ResponseError, code)
	})

	t.Run("context cancellation clears pending", func(t *testing.T) {
		t.Parallel()
		tr := billing.NewConsumeTracker()
		wait, err := tr.Begin("gems")
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, wait(ctx), context.DeadlineExceeded)
		assert.False(t, tr.Pending("gems"))
		assert.ErrorIs(t, tr.Resolve("gems", nil), billing.ErrUnmatchedConsume)
	})
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	var b billing.Backend = billing.Disabled{}
	b.SetListener(&recorder{})
	b.Init(context.Background())
	b.Refresh(context.Background())
	b.Purchase(context.Background(), "coins")
	assert.False(t, b.IsEnabled())
	assert.NoError(t, b.ConsumePurchase(context.Background(), "coins", "tok"))
	products, err := b.Products(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newStore := func() (*billing.Memory, *recorder) {
		m := billing.NewMemory(
			billing.Product{ID: "coins_100", Price: "$0.99", PriceValue: 0.99},
			billing.Product{ID: "coins_500", Price: "$3.99", PriceValue: 3.99},
		)
		r := &recorder{}
		m.SetListener(r)
		return m, r
	}

	t.Run("init and refresh", func(t *testing.T) {
		t.Parallel()
		m, r := newStore()
		m.Init(ctx)
		m.Refresh(ctx)
		m.FailNextRefresh("offline")
		m.Refresh(ctx)

		assert.True(t, r.initOK)
		assert.Len(t, r.products, 2)
		assert.Equal(t, []string{"initialized", "products", "products_failed:offline"}, r.calls)
	})

	t.Run("purchase then consume", func(t *testing.T) {
		t.Parallel()
		m, r := newStore()
		m.Purchase(ctx, "coins_100")
		require.Len(t, r.success, 1)
		p := r.success[0]
		assert.Equal(t, "coins_100", p.ID)
		assert.NotEmpty(t, p.PurchaseToken)
		assert.NotEmpty(t, p.TransactionID)
		assert.Equal(t, 0.99, p.PriceValue)

		owned, err := m.Products(ctx)
		require.NoError(t, err)
		assert.Equal(t, []billing.Purchase{{Token: p.PurchaseToken, ID: "coins_100"}}, owned)

		require.NoError(t, m.ConsumePurchase(ctx, "coins_100", p.PurchaseToken))
		assert.Empty(t, m.Unconsumed())

		err = m.ConsumePurchase(ctx, "coins_100", p.PurchaseToken)
		code, _ := billing.CodeOf(err)
		assert.Equal(t, billing.ResponseItemNotOwned, code)
	})

	t.Run("scripted outcomes", func(t *testing.T) {
		t.Parallel()
		m, r := newStore()
		m.QueueOutcome(billing.OutcomeCancel, billing.OutcomeFail, billing.OutcomeRestore, billing.OutcomeRestoreFail)
		for range 4 {
			m.Purchase(ctx, "coins_500")
		}
		m.Purchase(ctx, "unknown")
		assert.Equal(t, []string{
			"canceled:coins_500",
			"failure:coins_500:error",
			"restored:coins_500",
			"restore_failure:coins_500",
			"failure:unknown:item_unavailable",
		}, r.calls)
		assert.Len(t, m.Unconsumed(), 1)
	})

	t.Run("consume failure", func(t *testing.T) {
		t.Parallel()
		m, _ := newStore()
		p := m.AddUnconsumed("coins_100")
		m.FailNextConsume(billing.ResponseServiceDisconnected)
		err := m.ConsumePurchase(ctx, "coins_100", p.PurchaseToken)
		code, ok := billing.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, billing.ResponseServiceDisconnected, code)
		assert.Len(t, m.Unconsumed(), 1)
	})

	t.Run("unconsumed push and ack", func(t *testing.T) {
		t.Parallel()
		m, r := newStore()
		p := m.AddUnconsumed("coins_500")
		m.QueryUnconsumedPurchases(ctx)
		require.Len(t, r.unconsumed, 1)
		assert.Equal(t, p.PurchaseToken, r.unconsumed[0].PurchaseToken)

		m.OnServerSuccess(ctx, p.PurchaseToken)
		assert.True(t, m.Acknowledged(p.PurchaseToken))
	})

	t.Run("play pass", func(t *testing.T) {
		t.Parallel()
		m, r := newStore()
		m.SetPlayPass(true, "pass-token")
		assert.NotContains(t, r.calls, "playpass")

		m.InitPlayPass(ctx, "play_pass")
		assert.True(t, r.passActive)
		assert.Equal(t, "pass-token", r.passToken)

		m.SetPlayPass(false, "")
		assert.False(t, r.passActive)
	})
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	assert.Contains(t, billing.FormatPrice(0.99, "USD"), "0.99")
	assert.Contains(t, billing.FormatPrice(4.5, "eur"), "4.50")
	assert.Equal(t, "1.00 XYZW", billing.FormatPrice(1, "XYZW"))

	assert.InDelta(t, 9.99, billing.MinorToMajor(999, "USD"), 0.0001)
	assert.InDelta(t, 500.0, billing.MinorToMajor(500, "JPY"), 0.0001)
}
