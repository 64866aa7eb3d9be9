// Package events is the in-process event bus of the purchase flow.
//
// Notifier dispatches named events synchronously, in subscription order, on
// the caller's goroutine. Handlers may call back into the emitter. A
// panicking handler is recovered and logged so it cannot break the flow that
// emitted the event.
//
// Stream turns the synchronous bus into per-consumer channels for UI layers
// that prefer select loops; slow consumers lose events instead of blocking
// dispatch. NATSForwarder republishes events on a NATS subject so other
// processes can observe purchase activity.
package events
