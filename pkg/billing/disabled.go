package billing

import "context"

// Disabled is the backend for platforms without a store.
// Nothing is ever pushed to the listener.
type Disabled struct{}

var _ Backend = Disabled{}

func (Disabled) Init(context.Context) {}
func (Disabled) InitPlayPass(context.Context, string) {}
func (Disabled) SetListener(Listener) {}
func (Disabled) IsEnabled() bool { return false }
func (Disabled) Refresh(context.Context) {}
func (Disabled) Purchase(context.Context, string) {}
func (Disabled) QueryUnconsumedPurchases(context.Context) {}
func (Disabled) OnServerSuccess(context.Context, string) {}

func (Disabled) ConsumePurchase(context.Context, string, string) error { return nil }

func (Disabled) Products(context.Context) ([]Purchase, error) { return []Purchase{}, nil }
