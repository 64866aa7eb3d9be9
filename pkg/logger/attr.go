package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records an emitted event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// UserID records the purchasing user under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// PackID records the catalog pack identifier under the key "pack_id".
func PackID(id string) slog.Attr {
	return slog.String("pack_id", id)
}

// ProductID records the store product identifier under the key "product_id".
func ProductID(id string) slog.Attr {
	return slog.String("product_id", id)
}

// TransactionID records the store transaction identifier.
// Empty ids produce an empty Attr.
func TransactionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("transaction_id", id)
}

// Stage records the purchase stage (e.g. "server_start_retry").
func Stage(stage string) slog.Attr {
	return slog.String("stage", stage)
}

// FlowState records the purchase flow state name.
func FlowState(state string) slog.Attr {
	return slog.String("flow_state", state)
}

// SDKState records the billing SDK/catalog state name.
func SDKState(state string) slog.Attr {
	return slog.String("sdk_state", state)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Delay records a scheduled delay under the key "delay".
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}
