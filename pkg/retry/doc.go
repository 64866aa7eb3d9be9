// Package retry holds the delay policies and the circuit breaker shared by
// the grant client and the catalog refresh loop.
//
// A BackoffStrategy maps a 1-based attempt number to a delay. LinearBackoff
// grows by a fixed step up to a cap, which is what catalog refresh uses
// (10s per failed attempt, capped at five minutes). ExponentialBackoff adds
// jitter and suits network retries against a shared server.
//
// CircuitBreaker stops hammering an endpoint that keeps failing: after
// FailureThreshold consecutive failures it opens, rejects calls until
// RecoveryTimeout has elapsed, then lets probes through and closes again
// after SuccessThreshold consecutive successes.
package retry
