package grant

import "errors"

var (
	ErrConnectionFailed = errors.New("grant: connection failed")
	ErrCircuitOpen      = errors.New("grant: circuit breaker is open")
	ErrInvalidEndpoint  = errors.New("grant: invalid endpoint")
	ErrInvalidResponse  = errors.New("grant: response is not a JSON object")
	ErrInvalidRequest   = errors.New("grant: invalid request")
)

// IsCircuitOpen reports whether err was caused by an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
