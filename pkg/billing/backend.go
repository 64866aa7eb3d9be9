package billing

import "context"

// Backend is the capability surface of a platform billing integration.
//
// Init, InitPlayPass, Refresh, Purchase and QueryUnconsumedPurchases are
// fire-and-forget: their outcome is delivered to the Listener.
type Backend interface {
	Init(ctx context.Context)
	InitPlayPass(ctx context.Context, productID string)

	// SetListener registers the callback sink. Callbacks go only to the most
	// recently registered listener.
	SetListener(l Listener)

	IsEnabled() bool
	Refresh(ctx context.Context)
	Purchase(ctx context.Context, packID string)

	// ConsumePurchase blocks until the platform confirms or rejects the
	// consumption. A rejection is returned as *Error.
	ConsumePurchase(ctx context.Context, productID, token string) error

	Products(ctx context.Context) ([]Purchase, error)
	QueryUnconsumedPurchases(ctx context.Context)

	// OnServerSuccess acknowledges a purchase the grant server accepted.
	OnServerSuccess(ctx context.Context, token string)
}

// Listener receives everything a Backend pushes.
type Listener interface {
	OnInitialized(success bool)
	OnSuccess(p PurchaseProduct)
	OnFailure(p Product, msg string, code ResponseCode)
	OnCanceled(p Product)
	OnRestored(p PurchaseProduct)
	OnRestoreFailure(p Product, msg string, code ResponseCode)
	OnProductRequestSuccess(products []Product)
	OnProductRequestFailure(msg string)
	OnPlayPassStatusUpdate(active bool, token string)
	OnUnConsumedProductsUpdate(products []PurchaseProduct)
}

// NopListener ignores every callback. Embed it to implement part of Listener.
type NopListener struct{}

func (NopListener) OnInitialized(bool) {}
func (NopListener) OnSuccess(PurchaseProduct) {}
func (NopListener) OnFailure(Product, string, ResponseCode) {}
func (NopListener) OnCanceled(Product) {}
func (NopListener) OnRestored(PurchaseProduct) {}
func (NopListener) OnRestoreFailure(Product, string, ResponseCode) {}
func (NopListener) OnProductRequestSuccess([]Product) {}
func (NopListener) OnProductRequestFailure(string) {}
func (NopListener) OnPlayPassStatusUpdate(bool, string) {}
func (NopListener) OnUnConsumedProductsUpdate([]PurchaseProduct) {}
