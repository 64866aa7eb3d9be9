package purchase

import (
	"encoding/json"

	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/grant"
)

// ErrorCode classifies a failed purchase flow.
type ErrorCode string

const (
	CodeClientFailed     ErrorCode = "client_failed"
	CodeCancelled        ErrorCode = "cancelled"
	CodeDuplicateOrder   ErrorCode = "duplicate_order"
	CodeNoPurchaseFound  ErrorCode = "no_purchase_found"
	CodePackNotFound     ErrorCode = "pack_not_found"
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeConsumeFailed    ErrorCode = "consume_failed"
	CodeEmptyResponse    ErrorCode = "empty response"
)

var messageKeys = map[ErrorCode]string{
	CodeDuplicateOrder:   "duplicate_purchase",
	CodePackNotFound:     "pack_not_found",
	CodeClientFailed:     "wrong",
	CodeConnectionFailed: "connect_failed",
	CodeNoPurchaseFound:  "purchase_not_found",
	CodeCancelled:        "user_cancel_pay",
	CodeConsumeFailed:    "consume_failed",
}

// MessageKey returns the UI message key for the code. Codes without a
// dedicated message map to "wrong".
func (c ErrorCode) MessageKey() string {
	return ErrorMessageKey(string(c))
}

// ErrorMessageKey maps an error code, including codes reported by the grant
// server, to a UI message key.
func ErrorMessageKey(code string) string {
	if key, ok := messageKeys[ErrorCode(code)]; ok {
		return key
	}
	return messageKeys[CodeClientFailed]
}

// Outcome tags the terminal branch a flow took.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeCancelled
	OutcomeClientFailed
	OutcomeConnectionFailed
	OutcomeServerError
	OutcomeEmptyResponse
	OutcomeConsumeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeClientFailed:
		return "client_failed"
	case OutcomeConnectionFailed:
		return "connection_failed"
	case OutcomeServerError:
		return "server_error"
	case OutcomeEmptyResponse:
		return "empty_response"
	case OutcomeConsumeFailed:
		return "consume_failed"
	default:
		return "unknown"
	}
}

// Retryable reports whether RetryPurchaseFlow can resume a flow that ended
// with this outcome.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeConnectionFailed, OutcomeServerError, OutcomeEmptyResponse, OutcomeConsumeFailed:
		return true
	default:
		return false
	}
}

// Result is the payload of a PurchaseComplete event. A new value is built
// for every terminal transition; handlers must treat Grant as read-only.
type Result struct {
	Outcome Outcome
	// Error is empty iff the purchase was granted and consumed.
	Error             ErrorCode
	ProductID         string
	Receipt           string
	Signature         string
	ProducePriceValue float64
	CurrencyCode      string
	TransactionID     string
	// ConsumeError is the backend response code when Outcome is
	// OutcomeConsumeFailed.
	ConsumeError billing.ResponseCode
	ExtraError   string
	Retry        bool
	Grant        *grant.Response
}

// MarshalJSON flattens the grant server fields together with the flow
// fields into a single object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if r.Grant != nil {
		for k, v := range r.Grant.Fields {
			out[k] = v
		}
	}
	if r.Error != "" {
		out["error"] = r.Error
	} else {
		out["error"] = nil
	}
	out["outcome"] = r.Outcome.String()
	out["productid"] = r.ProductID
	if r.Receipt != "" {
		out["receipt"] = r.Receipt
	}
	if r.Signature != "" {
		out["signature"] = r.Signature
	}
	if r.TransactionID != "" {
		out["transactionID"] = r.TransactionID
	}
	if r.CurrencyCode != "" {
		out["currencyCode"] = r.CurrencyCode
		out["producePriceValue"] = r.ProducePriceValue
	}
	if r.Outcome == OutcomeConsumeFailed {
		out["consumeError"] = int(r.ConsumeError)
	}
	if r.ExtraError != "" {
		out["extraError"] = r.ExtraError
	}
	if r.Retry {
		out["retry"] = true
	}
	return json.Marshal(out)
}

// resultFor seeds a Result with the purchase descriptor.
func resultFor(p billing.PurchaseProduct) Result {
	return Result{
		ProductID: p.ID,
		Receipt:   p.Receipt,
		Signature: p.ReceiptCipheredPayload,
	}
}
