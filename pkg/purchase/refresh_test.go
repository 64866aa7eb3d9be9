package purchase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/catalog"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/purchase"
)

func TestRefresh_LinearBackoff(t *testing.T) {
	t.Parallel()

	store := billing.NewMemory(coins100)
	for range 3 {
		store.FailNextRefresh("network down")
	}
	h := newHarness(t, store)

	require.Equal(t, purchase.SDKFetchFailed, h.ctrl.SDKState())
	assert.True(t, h.ctrl.PackagesFailed())

	h.clock.fire(h.clock.last())
	h.clock.fire(h.clock.last())
	assert.Equal(t, purchase.SDKFetchFailed, h.ctrl.SDKState())

	h.clock.fire(h.clock.last())
	assert.Equal(t, purchase.SDKFetched, h.ctrl.SDKState())
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}, h.clock.delays())

	// the counter starts over after a success
	store.FailNextRefresh("network down")
	h.ctrl.StartPackageFetch()
	delays := h.clock.delays()
	assert.Equal(t, 10*time.Second, delays[len(delays)-1])

	fails := h.events.of(events.PackageFetchFail)
	require.Len(t, fails, 4)
	assert.Equal(t, "network down", fails[0].Payload)
	assert.Len(t, h.events.of(events.PackageFetchSuccess), 1)

	stats := h.stats.named("pacakge_fetch_failed")
	require.Len(t, stats, 4)
	assert.Equal(t, "network down", stats[0].params["kingdom"])
}

func TestRefresh_BackoffIsCapped(t *testing.T) {
	t.Parallel()

	const failures = 35
	store := billing.NewMemory(coins100)
	for range failures {
		store.FailNextRefresh("timeout")
	}
	h := newHarness(t, store)
	for range failures - 1 {
		h.clock.fire(h.clock.last())
	}
	require.Equal(t, purchase.SDKFetchFailed, h.ctrl.SDKState())

	delays := h.clock.delays()
	require.Len(t, delays, failures)
	for i, d := range delays {
		want := min(300*time.Second, time.Duration(i+1)*10*time.Second)
		assert.Equal(t, want, d, "failure %d", i+1)
	}

	h.clock.fire(h.clock.last())
	assert.Equal(t, purchase.SDKFetched, h.ctrl.SDKState())
}

func TestRefresh_StaleTimerIgnored(t *testing.T) {
	t.Parallel()

	store := billing.NewMemory(coins100)
	store.FailNextRefresh("timeout")
	h := newHarness(t, store)
	pending := h.clock.last()
	require.NotNil(t, pending)

	h.ctrl.StartPackageFetch()
	require.Equal(t, purchase.SDKFetched, h.ctrl.SDKState())
	require.Len(t, h.events.of(events.PackageFetchSuccess), 1)

	// fired although it was stopped
	h.clock.fire(pending)
	assert.Len(t, h.events.of(events.PackageFetchSuccess), 1)
}

func TestRefresh_TimerAfterClose(t *testing.T) {
	t.Parallel()

	store := billing.NewMemory(coins100)
	store.FailNextRefresh("timeout")
	h := newHarness(t, store)
	pending := h.clock.last()
	require.NoError(t, h.ctrl.Close())
	h.events.reset()

	h.clock.fire(pending)
	assert.Equal(t, purchase.SDKFetchFailed, h.ctrl.SDKState())
	assert.Empty(t, h.events.names())
}

func TestRefresh_EmptyStoreAndCatalog(t *testing.T) {
	t.Parallel()

	store := billing.NewMemory()
	h := newHarness(t, store, purchase.WithLoader(catalog.MemoryLoader(nil)))

	assert.Equal(t, purchase.SDKFetchFailed, h.ctrl.SDKState())
	assert.Len(t, h.events.of(events.PackageFetchFail), 1)
	assert.Equal(t, []time.Duration{10 * time.Second}, h.clock.delays())
}

func TestRefresh_EmptyStoreKeepsStaticCatalog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, billing.NewMemory())

	assert.Equal(t, purchase.SDKFetched, h.ctrl.SDKState())
	p, ok := h.ctrl.Pack("coins_100")
	require.True(t, ok)
	assert.Equal(t, "$1", p.Price, "static price kept")
}

func TestRefresh_SyntheticPack(t *testing.T) {
	t.Parallel()

	store := billing.NewMemory(billing.Product{ID: "pack_a", Price: "$0.99", PriceValue: 0.99})
	h := newHarness(t, store, purchase.WithLoader(catalog.MemoryLoader(nil)))

	require.Equal(t, purchase.SDKFetched, h.ctrl.SDKState())
	p, ok := h.ctrl.Pack("pack_a")
	require.True(t, ok)
	assert.Equal(t, "pack_a", p.PackID)
	assert.Equal(t, "$0.99", p.Price)
	assert.Equal(t, 0.99, p.PriceValue)
	assert.False(t, p.InStore)
	assert.Empty(t, p.ItemName)
}

func TestRefresh_SkipsUnusableProducts(t *testing.T) {
	t.Parallel()

	store := billing.NewMemory(
		coins100,
		billing.Product{ID: "no_price"},
		billing.Product{Price: "$1.99", PriceValue: 1.99},
	)
	h := newHarness(t, store)

	require.Equal(t, purchase.SDKFetched, h.ctrl.SDKState())
	assert.False(t, h.ctrl.ContainsPack("no_price"))
	p, ok := h.ctrl.Pack("coins_500")
	require.True(t, ok)
	assert.Equal(t, "$5", p.Price, "pack missing from the store keeps its static price")
}
