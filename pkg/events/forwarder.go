package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/nats"
)

// NATSForwarder republishes every event as JSON on "<prefix>.<name>".
type NATSForwarder struct {
	pub    nats.Publisher
	prefix string
	log    *slog.Logger
}

// NewNATSForwarder creates a forwarder publishing through pub.
func NewNATSForwarder(pub nats.Publisher, prefix string, log *slog.Logger) *NATSForwarder {
	if log == nil {
		log = slog.Default()
	}
	return &NATSForwarder{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		log:    log,
	}
}

// Attach subscribes the forwarder to every event on n.
func (f *NATSForwarder) Attach(n *Notifier) func() {
	return n.SubscribeAll(f.Handle)
}

// Subject returns the subject used for name.
func (f *NATSForwarder) Subject(name Name) string {
	if f.prefix == "" {
		return string(name)
	}
	return f.prefix + "." + string(name)
}

// Handle publishes e. Failures are logged, never returned to the emitter.
func (f *NATSForwarder) Handle(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		f.log.WarnContext(ctx, "failed to encode event", logger.Event(string(e.Name)), logger.Error(err))
		return
	}
	if err := f.pub.Publish(f.Subject(e.Name), data); err != nil {
		f.log.WarnContext(ctx, "failed to publish event", logger.Event(string(e.Name)), logger.Error(err))
	}
}
