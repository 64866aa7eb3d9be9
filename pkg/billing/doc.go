// Package billing defines the contract between the purchase flow controller
// and a platform billing backend, together with the backends shipped with
// iapkit.
//
// A Backend exposes pull operations (Init, Refresh, Purchase, Consume, ...)
// and reports everything the platform pushes back through a single Listener:
// initialization results, purchase outcomes, catalog refresh results,
// unconsumed purchases and play-pass status changes. Listener callbacks may
// arrive on any goroutine; the receiver is responsible for serializing them.
//
// Consuming a purchase is a blocking call that returns nil or an *Error
// carrying the platform ResponseCode. Bindings whose native layer reports
// consume results as callbacks correlate them with a ConsumeTracker, which
// guarantees a single resolution per outstanding product and rejects
// callbacks nobody is waiting for.
//
// Backends:
//
//   - Disabled: no store on this platform. Every operation is a no-op.
//   - Memory: an in-process store with scriptable outcomes, used by the CLI
//     and tests in place of a device store binding.
//   - Paddle: a web-store binding on top of Paddle Billing (transactions,
//     prices and signed webhooks).
package billing
