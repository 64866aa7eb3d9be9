package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/logger"
)

type subscription struct {
	id      uint64
	name    Name // empty matches every event
	handler Handler
}

// Notifier is a synchronous, ordered event bus. Safe for concurrent use.
type Notifier struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNotifier creates an empty bus.
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers h for events called name and returns a function that
// removes the subscription.
func (n *Notifier) Subscribe(name Name, h Handler) func() {
	return n.add(name, h)
}

// SubscribeAll registers h for every event.
func (n *Notifier) SubscribeAll(h Handler) func() {
	return n.add("", h)
}

// Emit dispatches an event without payload.
func (n *Notifier) Emit(ctx context.Context, name Name) {
	n.Dispatch(ctx, name, nil)
}

// Dispatch delivers the event to every matching handler before returning.
func (n *Notifier) Dispatch(ctx context.Context, name Name, payload any) {
	n.mu.RLock()
	subs := slices.Clone(n.subs)
	n.mu.RUnlock()

	e := Event{Name: name, Payload: payload, At: n.now()}
	for _, s := range subs {
		if s.name != "" && s.name != name {
			continue
		}
		n.call(ctx, s.handler, e)
	}
}

func (n *Notifier) call(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.log.ErrorContext(ctx, "event handler panicked",
				logger.Event(string(e.Name)),
				logger.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	h(ctx, e)
}

func (n *Notifier) add(name Name, h Handler) func() {
	if h == nil {
		return func() {}
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, name: name, handler: h})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			n.subs = slices.DeleteFunc(n.subs, func(s subscription) bool { return s.id == id })
			n.mu.Unlock()
		})
	}
}
