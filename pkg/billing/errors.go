package billing

import (
	"errors"
	"fmt"
)

var (
	ErrConsumeInFlight  = errors.New("billing: consume already pending for product")
	ErrUnmatchedConsume = errors.New("billing: consume result without pending request")
	ErrPackNotFound     = errors.New("billing: pack not found in store")
	ErrNotOwned         = errors.New("billing: purchase token not owned")
	ErrWebhookInvalid   = errors.New("billing: webhook signature verification failed")
	ErrMissingAPIKey    = errors.New("billing: paddle API key is required")
	ErrMissingSecret    = errors.New("billing: paddle webhook secret is required")
	ErrInvalidEnv       = errors.New("billing: invalid paddle environment")
	ErrNoCheckoutURL    = errors.New("billing: no checkout URL returned from provider")
)

// Error is a billing failure reported by the platform with its response code.
type Error struct {
	Code    ResponseCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billing: %s (%d)", e.Code, int(e.Code))
	}
	return fmt.Sprintf("billing: %s (%d): %s", e.Code, int(e.Code), e.Message)
}

// NewError returns an *Error for the given code.
func NewError(code ResponseCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// CodeOf extracts the ResponseCode carried by err.
// Errors that are not billing errors report ResponseError and false.
func CodeOf(err error) (ResponseCode, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Code, true
	}
	return ResponseError, false
}
