// Package analytics records custom purchase telemetry events.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/nats"
)

// Event names logged by the purchase flow.
const (
	EventPurchaseVirtualCurrency = "PurchaseVirtualCurrency"
	EventServerPurchaseSuccess   = "server_purchase_success"
	EventPackageFetchFailed      = "pacakge_fetch_failed"
	EventInitFailed              = "iap_init_failed"
)

// Parameter keys. Events use a fixed taxonomy of generic slots.
const (
	ParamKingdom = "kingdom"
	ParamPhylum  = "phylum"
	ParamClass   = "class"
	ParamFamily  = "family"
)

// Params are event parameters.
type Params map[string]string

// Sink receives analytics events. Implementations must not block the caller
// for long and must never fail the flow that logs the event.
type Sink interface {
	LogCustomEvent(ctx context.Context, name string, params Params)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, name string, params Params)

func (f SinkFunc) LogCustomEvent(ctx context.Context, name string, params Params) {
	f(ctx, name, params)
}

// Nop discards every event.
var Nop Sink = SinkFunc(func(context.Context, string, Params) {})

// SlogSink writes events as structured log records.
type SlogSink struct {
	log   *slog.Logger
	level slog.Level
}

// NewSlogSink logs events to l at level.
func NewSlogSink(l *slog.Logger, level slog.Level) *SlogSink {
	if l == nil {
		l = slog.Default()
	}
	return &SlogSink{log: l, level: level}
}

func (s *SlogSink) LogCustomEvent(ctx context.Context, name string, params Params) {
	attrs := make([]any, 0, len(params)+1)
	attrs = append(attrs, logger.Event(name))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		attrs = append(attrs, slog.String(k, params[k]))
	}
	s.log.Log(ctx, s.level, "analytics event", attrs...)
}

type record struct {
	Name   string    `json:"name"`
	Params Params    `json:"params,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

// NATSSink publishes events as JSON on a single subject.
type NATSSink struct {
	pub     nats.Publisher
	subject string
	userID  string
	now     func() time.Time
	log     *slog.Logger
}

// NATSOption configures a NATSSink.
type NATSOption func(*NATSSink)

// WithUserID tags every record with the user id.
func WithUserID(id string) NATSOption {
	return func(s *NATSSink) { s.userID = id }
}

// WithLogger sets the logger for publish failures.
func WithLogger(l *slog.Logger) NATSOption {
	return func(s *NATSSink) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) NATSOption {
	return func(s *NATSSink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewNATSSink publishes through pub on subject.
func NewNATSSink(pub nats.Publisher, subject string, opts ...NATSOption) *NATSSink {
	s := &NATSSink{
		pub:     pub,
		subject: subject,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *NATSSink) LogCustomEvent(ctx context.Context, name string, params Params) {
	data, err := json.Marshal(record{Name: name, Params: params, UserID: s.userID, At: s.now()})
	if err != nil {
		s.log.WarnContext(ctx, "failed to encode analytics event", logger.Event(name), logger.Error(err))
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.log.WarnContext(ctx, "failed to publish analytics event", logger.Event(name), logger.Error(err))
	}
}

// Multi fans an event out to every sink in order.
func Multi(sinks ...Sink) Sink {
	sinks = slices.DeleteFunc(slices.Clone(sinks), func(s Sink) bool { return s == nil })
	return SinkFunc(func(ctx context.Context, name string, params Params) {
		for _, s := range sinks {
			s.LogCustomEvent(ctx, name, params)
		}
	})
}
