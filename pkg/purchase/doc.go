// Package purchase coordinates the in-app purchase flow: a client purchase
// through a billing backend, a verify-and-grant request to the game server,
// and consumption of the purchase on the backend.
//
// The Controller owns the catalog refresh cycle, the visible purchase flow
// state machine and the silent reconciliation of purchases that were paid
// for but never consumed.
//
// Basic usage:
//
//	store := billing.NewMemory(products...)
//	ctrl := purchase.New(cfg, store, grant.NewClient(),
//		purchase.WithLogger(log),
//		purchase.WithLoader(catalog.NewYAMLFileLoader("packs.yaml")),
//	)
//	defer ctrl.Close()
//
//	ctrl.Notifier().Subscribe(events.PurchaseComplete, func(ctx context.Context, e events.Event) {
//		res := e.Payload.(purchase.Result)
//		if res.Error != "" {
//			showError(res.Error.MessageKey())
//		}
//	})
//
//	if err := ctrl.InitiatePurchaseFlow("coins_100"); err != nil {
//		// another flow is running
//	}
//
// Every visible flow ends with exactly one PurchaseComplete event carrying a
// Result. Failed server grants and failed consumes stay retryable through
// RetryPurchaseFlow until a new flow starts.
package purchase
