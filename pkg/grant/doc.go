// Package grant talks to the remote grant server that verifies a store
// purchase and credits it to the user.
//
// A grant call is a single JSON POST of Request. The outcome has three
// shapes, which callers must tell apart:
//
//   - err != nil: the server could not be reached or answered with something
//     that is not a JSON object (wrapped ErrConnectionFailed, ErrCircuitOpen...).
//   - resp == nil, err == nil: the server answered with an empty body.
//   - resp != nil: a structured body. resp.Error is the server-reported
//     failure code ("duplicate_order", "no_purchase_found", ...) or empty
//     on success. Every other field is preserved verbatim in resp.Fields.
//
// Client is built on resty and can be guarded by a retry.CircuitBreaker,
// retried with a retry.BackoffStrategy, and signed with an HMAC secret.
package grant
