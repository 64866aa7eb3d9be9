package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/iapkit/pkg/logger"
)

const maxWebhookBodySize = 1 << 20

// PaddleConfig holds configuration for the Paddle web-store backend.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	CustomerID    string `env:"PADDLE_CUSTOMER_ID"`
	SuccessURL    string `env:"PADDLE_SUCCESS_URL"`
}

// CheckoutHandler presents a hosted checkout page for packID to the user.
type CheckoutHandler func(ctx context.Context, packID, checkoutURL string)

// PaddleOption configures the Paddle backend.
type PaddleOption func(*Paddle)

// WithCheckoutHandler sets the function that opens checkout pages.
func WithCheckoutHandler(h CheckoutHandler) PaddleOption {
	return func(p *Paddle) {
		if h != nil {
			p.checkout = h
		}
	}
}

// WithPaddleLogger sets the logger used for webhook diagnostics.
func WithPaddleLogger(l *slog.Logger) PaddleOption {
	return func(p *Paddle) {
		if l != nil {
			p.log = l
		}
	}
}

// paddleGateway is the part of the Paddle API the backend depends on.
type paddleGateway interface {
	listPrices(ctx context.Context) ([]Product, error)
	createTransaction(ctx context.Context, priceID, customerID, successURL string) (txnID, checkoutURL string, err error)
	verify(req *http.Request) (bool, error)
}

// Paddle sells packs as one-off Paddle transactions. Catalog products are
// Paddle prices, purchases complete through signed webhooks, and the
// play-pass subscription is tracked from subscription webhooks.
type Paddle struct {
	gw       paddleGateway
	cfg      PaddleConfig
	checkout CheckoutHandler
	log      *slog.Logger

	mu         sync.Mutex
	listener   Listener
	products   map[string]Product
	pending    map[string]string // transaction id -> pack id
	unconsumed map[string]PurchaseProduct
	acked      map[string]bool
	passID     string
	passToken  string
}

var _ Backend = (*Paddle)(nil)

// NewPaddle creates a Paddle backend from config.
func NewPaddle(cfg PaddleConfig, opts ...PaddleOption) (*Paddle, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnv, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	gw := &sdkGateway{client: client, verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}
	return newPaddle(gw, cfg, opts...), nil
}

func newPaddle(gw paddleGateway, cfg PaddleConfig, opts ...PaddleOption) *Paddle {
	p := &Paddle{
		gw:         gw,
		cfg:        cfg,
		checkout:   func(context.Context, string, string) {},
		log:        logger.Discard(),
		products:   make(map[string]Product),
		pending:    make(map[string]string),
		unconsumed: make(map[string]PurchaseProduct),
		acked:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Paddle) SetListener(l Listener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

func (p *Paddle) IsEnabled() bool { return p.gw != nil }

func (p *Paddle) Init(context.Context) {
	if l := p.currentListener(); l != nil {
		l.OnInitialized(p.IsEnabled())
	}
}

func (p *Paddle) InitPlayPass(_ context.Context, productID string) {
	p.mu.Lock()
	p.passID = productID
	l, token := p.listener, p.passToken
	p.mu.Unlock()
	if l != nil {
		l.OnPlayPassStatusUpdate(token != "", token)
	}
}

// Refresh loads active prices and reports them as store products.
func (p *Paddle) Refresh(ctx context.Context) {
	products, err := p.gw.listPrices(ctx)
	l := p.currentListener()
	if err != nil {
		if l != nil {
			l.OnProductRequestFailure(err.Error())
		}
		return
	}

	p.mu.Lock()
	p.products = make(map[string]Product, len(products))
	for _, prod := range products {
		p.products[prod.ID] = prod
	}
	p.mu.Unlock()

	if l != nil {
		l.OnProductRequestSuccess(products)
	}
}

// Purchase creates a transaction for packID and hands its checkout URL to
// the checkout handler. The outcome arrives later through HandleWebhook.
func (p *Paddle) Purchase(ctx context.Context, packID string) {
	p.mu.Lock()
	product, ok := p.products[packID]
	l := p.listener
	p.mu.Unlock()

	if !ok {
		if l != nil {
			l.OnFailure(Product{ID: packID}, ErrPackNotFound.Error(), ResponseItemUnavailable)
		}
		return
	}

	txnID, url, err := p.gw.createTransaction(ctx, packID, p.cfg.CustomerID, p.cfg.SuccessURL)
	if err != nil {
		if l != nil {
			l.OnFailure(product, err.Error(), ResponseServiceUnavailable)
		}
		return
	}

	p.mu.Lock()
	p.pending[txnID] = packID
	p.mu.Unlock()

	p.checkout(ctx, packID, url)
}

func (p *Paddle) ConsumePurchase(_ context.Context, productID, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	purchase, ok := p.unconsumed[token]
	if !ok || purchase.ID != productID {
		return NewError(ResponseItemNotOwned, ErrNotOwned.Error())
	}
	delete(p.unconsumed, token)
	return nil
}

func (p *Paddle) Products(context.Context) ([]Purchase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Purchase, 0, len(p.unconsumed))
	for _, token := range slices.Sorted(maps.Keys(p.unconsumed)) {
		out = append(out, Purchase{Token: token, ID: p.unconsumed[token].ID})
	}
	return out, nil
}

func (p *Paddle) QueryUnconsumedPurchases(context.Context) {
	p.mu.Lock()
	l, list := p.listener, p.unconsumedLocked()
	p.mu.Unlock()
	if l != nil {
		l.OnUnConsumedProductsUpdate(list)
	}
}

func (p *Paddle) OnServerSuccess(_ context.Context, token string) {
	p.mu.Lock()
	p.acked[token] = true
	p.mu.Unlock()
}

type paddleWebhook struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID         string         `json:"id"`
		Status     string         `json:"status"`
		CustomData map[string]any `json:"custom_data"`
		Items      []struct {
			PriceID string `json:"price_id"`
			Price   struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"items"`
	} `json:"data"`
}

func (w paddleWebhook) priceID() string {
	if len(w.Data.Items) == 0 {
		return ""
	}
	if id := w.Data.Items[0].PriceID; id != "" {
		return id
	}
	return w.Data.Items[0].Price.ID
}

// HandleWebhook verifies and applies a Paddle notification.
func (p *Paddle) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.gw.verify(req)
	if err != nil {
		return fmt.Errorf("webhook verification error: %w", err)
	}
	if !valid {
		return ErrWebhookInvalid
	}

	var event paddleWebhook
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	p.log.DebugContext(ctx, "paddle webhook",
		logger.Event(event.EventType),
		logger.TransactionID(event.Data.ID),
	)

	switch {
	case event.EventType == "transaction.completed":
		p.completeTransaction(event, payload, signature)
	case event.EventType == "transaction.canceled":
		p.failTransaction(event, true)
	case event.EventType == "transaction.payment_failed":
		p.failTransaction(event, false)
	case strings.HasPrefix(event.EventType, "subscription."):
		p.updateSubscription(event)
	}
	return nil
}

// WebhookHandler returns an http.Handler that feeds HandleWebhook.
func (p *Paddle) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if err := p.HandleWebhook(r.Context(), body, r.Header.Get("Paddle-Signature")); err != nil {
			p.log.WarnContext(r.Context(), "paddle webhook rejected", logger.Error(err))
			http.Error(w, "invalid webhook", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func (p *Paddle) completeTransaction(event paddleWebhook, payload []byte, signature string) {
	p.mu.Lock()
	packID, wasPending := p.pending[event.Data.ID]
	delete(p.pending, event.Data.ID)
	if packID == "" {
		packID = event.priceID()
	}
	product, ok := p.products[packID]
	if !ok {
		product = Product{ID: packID}
	}
	purchase := PurchaseProduct{
		Product:                product,
		TransactionID:          event.Data.ID,
		Receipt:                string(payload),
		ReceiptCipheredPayload: signature,
		PurchaseToken:          event.Data.ID,
	}
	p.unconsumed[purchase.PurchaseToken] = purchase
	l, list := p.listener, p.unconsumedLocked()
	p.mu.Unlock()

	if l == nil {
		return
	}
	if wasPending {
		l.OnSuccess(purchase)
		return
	}
	l.OnUnConsumedProductsUpdate(list)
}

func (p *Paddle) failTransaction(event paddleWebhook, canceled bool) {
	p.mu.Lock()
	packID, wasPending := p.pending[event.Data.ID]
	delete(p.pending, event.Data.ID)
	product, ok := p.products[packID]
	if !ok {
		product = Product{ID: packID}
	}
	l := p.listener
	p.mu.Unlock()

	if !wasPending || l == nil {
		return
	}
	if canceled {
		l.OnCanceled(product)
		return
	}
	l.OnFailure(product, "payment failed", ResponseError)
}

func (p *Paddle) updateSubscription(event paddleWebhook) {
	p.mu.Lock()
	if p.passID == "" || event.priceID() != p.passID {
		p.mu.Unlock()
		return
	}
	active := event.Data.Status == "active" || event.Data.Status == "trialing"
	if active {
		p.passToken = event.Data.ID
	} else {
		p.passToken = ""
	}
	l, token := p.listener, p.passToken
	p.mu.Unlock()

	if l != nil {
		l.OnPlayPassStatusUpdate(active, token)
	}
}

func (p *Paddle) currentListener() Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listener
}

func (p *Paddle) unconsumedLocked() []PurchaseProduct {
	out := make([]PurchaseProduct, 0, len(p.unconsumed))
	for _, token := range slices.Sorted(maps.Keys(p.unconsumed)) {
		out = append(out, p.unconsumed[token])
	}
	return out
}

// sdkGateway talks to the Paddle API.
type sdkGateway struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

func (g *sdkGateway) listPrices(ctx context.Context) ([]Product, error) {
	prices, err := g.client.ListPrices(ctx, &paddle.ListPricesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list paddle prices: %w", err)
	}

	var products []Product
	err = prices.Iter(ctx, func(price *paddle.Price) (bool, error) {
		code := string(price.UnitPrice.CurrencyCode)
		minor, err := strconv.ParseInt(price.UnitPrice.Amount, 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid amount for price %s: %w", price.ID, err)
		}
		value := MinorToMajor(minor, code)
		products = append(products, Product{
			ID:           price.ID,
			Title:        price.Description,
			Description:  price.Description,
			Price:        FormatPrice(value, code),
			PriceValue:   value,
			CurrencyCode: code,
		})
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate paddle prices: %w", err)
	}
	return products, nil
}

func (g *sdkGateway) createTransaction(ctx context.Context, priceID, customerID, successURL string) (string, string, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	req := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{"pack_id": priceID},
	}
	if customerID != "" {
		req.CustomData["customer_id"] = customerID
	}
	if successURL != "" {
		req.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(successURL)}
	}

	txn, err := g.client.TransactionsClient.CreateTransaction(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil {
		return "", "", ErrNoCheckoutURL
	}
	return txn.ID, *txn.Checkout.URL, nil
}

func (g *sdkGateway) verify(req *http.Request) (bool, error) {
	return g.verifier.Verify(req)
}
