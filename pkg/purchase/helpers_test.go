package purchase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/iapkit/pkg/analytics"
	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/catalog"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/grantlog"
	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/purchase"
)

var (
	coins100 = billing.Product{ID: "coins_100", Title: "100 Coins", Price: "$0.99", PriceValue: 0.99, CurrencyCode: "USD"}
	coins500 = billing.Product{ID: "coins_500", Title: "500 Coins", Price: "$4.99", PriceValue: 4.99, CurrencyCode: "USD"}

	staticPacks = []catalog.Pack{
		{PackID: "coins_500", ItemType: "coins", ItemValue: 500, ItemName: "Bag of coins", InStore: true, Price: "$5", PriceValue: 5},
		{PackID: "coins_100", ItemType: "coins", ItemValue: 100, ItemName: "Pile of coins", InStore: true, Price: "$1", PriceValue: 1},
	}

	errNetwork = errors.New("dial tcp: connection refused")
)

func syncRunner(f func()) { f() }

type loaderErr string

func (e loaderErr) Load(context.Context) ([]catalog.Pack, error) {
	return nil, errors.New(string(e))
}

func catalogPack(id string) catalog.Pack {
	return catalog.Pack{PackID: id, ItemName: id}
}

// queueRunner defers blocking calls until the test runs them.
type queueRunner struct {
	mu   sync.Mutex
	jobs []func()
}

func (q *queueRunner) run(f func()) {
	q.mu.Lock()
	q.jobs = append(q.jobs, f)
	q.mu.Unlock()
}

func (q *queueRunner) next() bool {
	q.mu.Lock()
	if len(q.jobs) == 0 {
		q.mu.Unlock()
		return false
	}
	f := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.mu.Unlock()
	f()
	return true
}

func (q *queueRunner) drain() {
	for q.next() {
	}
}

func (q *queueRunner) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type timer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

// manualClock records scheduled callbacks; the test fires them.
type manualClock struct {
	mu     sync.Mutex
	timers []*timer
}

func (m *manualClock) schedule(d time.Duration, f func()) func() bool {
	t := &timer{delay: d, f: f}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		was := !t.stopped
		t.stopped = true
		return was
	}
}

func (m *manualClock) delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, 0, len(m.timers))
	for _, t := range m.timers {
		out = append(out, t.delay)
	}
	return out
}

func (m *manualClock) last() *timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	return m.timers[len(m.timers)-1]
}

// fire runs t even if it was stopped, like a timer that raced its Stop.
func (m *manualClock) fire(t *timer) {
	t.f()
}

type reply struct {
	resp *grant.Response
	err  error
}

type fakeSender struct {
	mu       sync.Mutex
	replies  []reply
	requests []grant.Request
}

func (f *fakeSender) reply(resp *grant.Response, err error) {
	f.mu.Lock()
	f.replies = append(f.replies, reply{resp: resp, err: err})
	f.mu.Unlock()
}

func (f *fakeSender) Send(_ context.Context, _ string, req grant.Request) (*grant.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return granted(), nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func (f *fakeSender) sent() []grant.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]grant.Request(nil), f.requests...)
}

func granted() *grant.Response {
	return &grant.Response{Fields: map[string]json.RawMessage{
		"consumables": json.RawMessage(`{"coins":100}`),
	}}
}

func rejected(code string) *grant.Response {
	return &grant.Response{Error: code}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) names() []events.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Name, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func (r *recorder) of(name events.Name) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) results() []purchase.Result {
	var out []purchase.Result
	for _, e := range r.of(events.PurchaseComplete) {
		out = append(out, e.Payload.(purchase.Result))
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type stat struct {
	name   string
	params analytics.Params
}

type statRecorder struct {
	mu    sync.Mutex
	stats []stat
}

func (s *statRecorder) LogCustomEvent(_ context.Context, name string, params analytics.Params) {
	s.mu.Lock()
	s.stats = append(s.stats, stat{name: name, params: params})
	s.mu.Unlock()
}

// stages returns the phylum of every PurchaseVirtualCurrency event.
func (s *statRecorder) stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, st := range s.stats {
		if st.name == analytics.EventPurchaseVirtualCurrency {
			out = append(out, st.params[analytics.ParamPhylum])
		}
	}
	return out
}

func (s *statRecorder) named(name string) []stat {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stat
	for _, st := range s.stats {
		if st.name == name {
			out = append(out, st)
		}
	}
	return out
}

type harness struct {
	store  *billing.Memory
	sender *fakeSender
	events *recorder
	stats  *statRecorder
	clock  *manualClock
	grants *grantlog.MemoryLog
	ctrl   *purchase.Controller
}

func testConfig() purchase.Config {
	return purchase.Config{
		UserID:              "user-1",
		OSName:              "android",
		PurchaseAPIEndpoint: "https://api.example.com/purchase",
	}
}

// newHarness builds a controller over an in-process store with a
// synchronous runner. Extra options override the defaults.
func newHarness(t *testing.T, store *billing.Memory, opts ...purchase.Option) *harness {
	t.Helper()

	if store == nil {
		store = billing.NewMemory(coins100, coins500)
	}
	h := &harness{
		store:  store,
		sender: &fakeSender{},
		events: &recorder{},
		stats:  &statRecorder{},
		clock:  &manualClock{},
		grants: grantlog.NewMemoryLog(),
	}
	notifier := events.NewNotifier()
	notifier.SubscribeAll(h.events.handle)

	base := []purchase.Option{
		purchase.WithLogger(logger.Discard()),
		purchase.WithNotifier(notifier),
		purchase.WithAnalytics(h.stats),
		purchase.WithLoader(catalog.MemoryLoader(staticPacks)),
		purchase.WithGrantLog(h.grants),
		purchase.WithRunner(syncRunner),
		purchase.WithScheduler(h.clock.schedule),
	}
	h.ctrl = purchase.New(testConfig(), h.store, h.sender, append(base, opts...)...)
	t.Cleanup(func() { require.NoError(t, h.ctrl.Close()) })
	return h
}
