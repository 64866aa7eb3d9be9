package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	prices   []Product
	listErr  error
	txnID    string
	url      string
	txnErr   error
	valid    bool
	verified []string
}

func (f *fakeGateway) listPrices(context.Context) ([]Product, error) { return f.prices, f.listErr }

func (f *fakeGateway) createTransaction(context.Context, string, string, string) (string, string, error) {
	return f.txnID, f.url, f.txnErr
}

func (f *fakeGateway) verify(req *http.Request) (bool, error) {
	f.verified = append(f.verified, req.Header.Get("Paddle-Signature"))
	return f.valid, nil
}

type paddleListener struct {
	NopListener
	events     []string
	success    []PurchaseProduct
	unconsumed []PurchaseProduct
	passActive bool
	passToken  string
}

func (l *paddleListener) OnSuccess(p PurchaseProduct) {
	l.success = append(l.success, p)
	l.events = append(l.events, "success:"+p.ID)
}

func (l *paddleListener) OnFailure(p Product, _ string, code ResponseCode) {
	l.events = append(l.events, "failure:"+p.ID+":"+code.String())
}

func (l *paddleListener) OnCanceled(p Product) { l.events = append(l.events, "canceled:"+p.ID) }

func (l *paddleListener) OnProductRequestSuccess([]Product) {
	l.events = append(l.events, "products")
}

func (l *paddleListener) OnProductRequestFailure(msg string) {
	l.events = append(l.events, "products_failed:"+msg)
}

func (l *paddleListener) OnUnConsumedProductsUpdate(p []PurchaseProduct) {
	l.unconsumed = p
	l.events = append(l.events, "unconsumed")
}

func (l *paddleListener) OnPlayPassStatusUpdate(active bool, token string) {
	l.passActive, l.passToken = active, token
}

func newTestPaddle(gw *fakeGateway) (*Paddle, *paddleListener, *[]string) {
	var opened []string
	p := newPaddle(gw, PaddleConfig{CustomerID: "ctm_1"}, WithCheckoutHandler(func(_ context.Context, packID, url string) {
		opened = append(opened, packID+"@"+url)
	}))
	l := &paddleListener{}
	p.SetListener(l)
	return p, l, &opened
}

func webhook(eventType, txnID, priceID, status string) []byte {
	return []byte(`{"event_id":"evt_1","event_type":"` + eventType + `","data":{"id":"` + txnID +
		`","status":"` + status + `","items":[{"price_id":"` + priceID + `"}]}}`)
}

func TestNewPaddleValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPaddle(PaddleConfig{WebhookSecret: "s"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewPaddle(PaddleConfig{APIKey: "k"})
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = NewPaddle(PaddleConfig{APIKey: "k", WebhookSecret: "s", Environment: "staging"})
	assert.ErrorIs(t, err, ErrInvalidEnv)
}

func TestPaddlePurchaseLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gw := &fakeGateway{
		prices: []Product{{ID: "pri_coins", Price: "$ 0.99", PriceValue: 0.99, CurrencyCode: "USD"}},
		txnID:  "txn_1",
		url:    "https://pay.example.com/txn_1",
		valid:  true,
	}
	p, l, opened := newTestPaddle(gw)

	p.Refresh(ctx)
	p.Purchase(ctx, "pri_coins")
	assert.Equal(t, []string{"pri_coins@https://pay.example.com/txn_1"}, *opened)

	require.NoError(t, p.HandleWebhook(ctx, webhook("transaction.completed", "txn_1", "pri_coins", "completed"), "ts=1;h1=abc"))
	require.Len(t, l.success, 1)
	assert.Equal(t, "txn_1", l.success[0].PurchaseToken)
	assert.Equal(t, 0.99, l.success[0].PriceValue)
	assert.Equal(t, "ts=1;h1=abc", l.success[0].ReceiptCipheredPayload)
	assert.Equal(t, []string{"ts=1;h1=abc"}, gw.verified)

	owned, err := p.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Purchase{{Token: "txn_1", ID: "pri_coins"}}, owned)

	require.NoError(t, p.ConsumePurchase(ctx, "pri_coins", "txn_1"))
	err = p.ConsumePurchase(ctx, "pri_coins", "txn_1")
	code, _ := CodeOf(err)
	assert.Equal(t, ResponseItemNotOwned, code)

	assert.Equal(t, []string{"products", "success:pri_coins"}, l.events)
}

func TestPaddleFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown pack", func(t *testing.T) {
		t.Parallel()
		p, l, _ := newTestPaddle(&fakeGateway{valid: true})
		p.Purchase(ctx, "pri_missing")
		assert.Equal(t, []string{"failure:pri_missing:item_unavailable"}, l.events)
	})

	t.Run("transaction error", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{prices: []Product{{ID: "pri_a"}}, txnErr: errors.New("boom"), valid: true}
		p, l, opened := newTestPaddle(gw)
		p.Refresh(ctx)
		p.Purchase(ctx, "pri_a")
		assert.Empty(t, *opened)
		assert.Equal(t, []string{"products", "failure:pri_a:service_unavailable"}, l.events)
	})

	t.Run("canceled and payment failed", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{prices: []Product{{ID: "pri_a"}}, txnID: "txn_9", url: "u", valid: true}
		p, l, _ := newTestPaddle(gw)
		p.Refresh(ctx)
		p.Purchase(ctx, "pri_a")
		require.NoError(t, p.HandleWebhook(ctx, webhook("transaction.canceled", "txn_9", "pri_a", "canceled"), "sig"))
		// no longer pending
		require.NoError(t, p.HandleWebhook(ctx, webhook("transaction.payment_failed", "txn_9", "pri_a", "past_due"), "sig"))

		p.Purchase(ctx, "pri_a")
		require.NoError(t, p.HandleWebhook(ctx, webhook("transaction.payment_failed", "txn_9", "pri_a", "past_due"), "sig"))
		assert.Equal(t, []string{"products", "canceled:pri_a", "failure:pri_a:error"}, l.events)
	})

	t.Run("refresh failure", func(t *testing.T) {
		t.Parallel()
		p, l, _ := newTestPaddle(&fakeGateway{listErr: errors.New("offline")})
		p.Refresh(ctx)
		assert.Equal(t, []string{"products_failed:offline"}, l.events)
	})

	t.Run("invalid signature", func(t *testing.T) {
		t.Parallel()
		p, _, _ := newTestPaddle(&fakeGateway{valid: false})
		err := p.HandleWebhook(ctx, webhook("transaction.completed", "txn_1", "pri_a", "completed"), "bad")
		assert.ErrorIs(t, err, ErrWebhookInvalid)
	})
}

func TestPaddleUnsolicitedCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, l, _ := newTestPaddle(&fakeGateway{valid: true})
	require.NoError(t, p.HandleWebhook(ctx, webhook("transaction.completed", "txn_other", "pri_b", "completed"), "sig"))
	assert.Empty(t, l.success)
	require.Len(t, l.unconsumed, 1)
	assert.Equal(t, "pri_b", l.unconsumed[0].ID)

	p.QueryUnconsumedPurchases(ctx)
	assert.Equal(t, []string{"unconsumed", "unconsumed"}, l.events)
}

func TestPaddlePlayPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, l, _ := newTestPaddle(&fakeGateway{valid: true})
	p.InitPlayPass(ctx, "pri_pass")
	assert.False(t, l.passActive)

	require.NoError(t, p.HandleWebhook(ctx, webhook("subscription.activated", "sub_1", "pri_pass", "active"), "sig"))
	assert.True(t, l.passActive)
	assert.Equal(t, "sub_1", l.passToken)

	require.NoError(t, p.HandleWebhook(ctx, webhook("subscription.updated", "sub_2", "pri_other", "active"), "sig"))
	assert.Equal(t, "sub_1", l.passToken)

	require.NoError(t, p.HandleWebhook(ctx, webhook("subscription.canceled", "sub_1", "pri_pass", "canceled"), "sig"))
	assert.False(t, l.passActive)
	assert.Empty(t, l.passToken)
}

func TestPaddleWebhookHandler(t *testing.T) {
	t.Parallel()

	p, l, _ := newTestPaddle(&fakeGateway{valid: true})
	body := string(webhook("transaction.completed", "txn_h", "pri_h", "completed"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", strings.NewReader(body))
	req.Header.Set("Paddle-Signature", "sig")
	rec := httptest.NewRecorder()
	p.WebhookHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, l.unconsumed, 1)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/paddle", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	p.WebhookHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
