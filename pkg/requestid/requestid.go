// Package requestid carries a correlation id through a grant call: the
// HTTP surfaces accept or mint it, the grant client forwards it, and the
// logger prints it.
package requestid

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
)

// Header carries the id between the controller, its HTTP API and the
// grant server.
const Header = "X-Request-ID"

const maxLength = 128

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type contextKey struct{}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Ensure returns ctx and its id, attaching a fresh one when ctx has none.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithContext(ctx, id), id
}

// Valid reports whether a client-supplied id may be reused.
func Valid(id string) bool {
	return id != "" && len(id) <= maxLength && validID.MatchString(id)
}

// LogExtractor adds "request_id" to records logged with a tagged context.
func LogExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := FromContext(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}
