package events

import (
	"context"
	"sync"
)

// Stream fans events out to channel subscribers. A subscriber whose buffer
// is full misses the event and is dropped.
type Stream struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
	closed      bool
	detach      func()
	cleanup     sync.WaitGroup
}

// Subscription is a channel view of a Stream.
type Subscription struct {
	ch     chan Event
	quit   chan struct{}
	once   sync.Once
	stream *Stream
}

// Events returns the receive channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.stream.remove(s)
}

// NewStream attaches a stream to n. bufferSize is clamped to at least 1.
func NewStream(n *Notifier, bufferSize int) *Stream {
	s := &Stream{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
	s.detach = n.SubscribeAll(s.publish)
	return s
}

// Subscribe returns a new subscription. It ends when ctx is done, on
// Close, or when the subscriber falls behind.
func (s *Stream) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, s.bufferSize),
		quit:   make(chan struct{}),
		stream: s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		sub.closeChan()
		return sub
	}
	s.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		s.cleanup.Add(1)
		go func() {
			defer s.cleanup.Done()
			select {
			case <-ctx.Done():
				s.remove(sub)
			case <-sub.quit:
			}
		}()
	}
	return sub
}

// Close detaches from the notifier and ends every subscription.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*Subscription, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.detach()
	for _, sub := range subs {
		s.remove(sub)
	}
	s.cleanup.Wait()
	return nil
}

func (s *Stream) publish(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subscribers {
		select {
		case sub.ch <- e:
		default:
			delete(s.subscribers, sub)
			sub.closeChan()
		}
	}
}

func (s *Stream) remove(sub *Subscription) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
	sub.closeChan()
}

func (sub *Subscription) closeChan() {
	sub.once.Do(func() {
		close(sub.ch)
		close(sub.quit)
	})
}
