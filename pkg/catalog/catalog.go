package catalog

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/iapkit/pkg/billing"
)

type snapshot struct {
	order []string
	packs map[string]Pack
}

var emptySnapshot = &snapshot{packs: map[string]Pack{}}

// Catalog is safe for concurrent use. Reads are lock-free.
type Catalog struct {
	mu  sync.Mutex
	cur atomic.Pointer[snapshot]
}

// New creates a catalog holding packs in the given order.
func New(packs ...Pack) *Catalog {
	c := &Catalog{}
	c.cur.Store(emptySnapshot)
	if len(packs) > 0 {
		c.Replace(packs)
	}
	return c
}

// Replace swaps the static pack list. Later duplicates of an id win.
func (c *Catalog) Replace(packs []Pack) {
	next := &snapshot{
		order: make([]string, 0, len(packs)),
		packs: make(map[string]Pack, len(packs)),
	}
	for _, p := range packs {
		if _, seen := next.packs[p.PackID]; !seen {
			next.order = append(next.order, p.PackID)
		}
		next.packs[p.PackID] = p
	}

	c.mu.Lock()
	c.cur.Store(next)
	c.mu.Unlock()
}

// SortByPrice stable-sorts the static list by ascending PriceValue.
func (c *Catalog) SortByPrice() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cur.Load()
	order := slices.Clone(cur.order)
	slices.SortStableFunc(order, func(a, b string) int {
		pa, pb := cur.packs[a].PriceValue, cur.packs[b].PriceValue
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return 0
	})
	c.cur.Store(&snapshot{order: order, packs: cur.packs})
}

// Merge applies store products. Usable products (non-empty id and price)
// update the price of the matching pack, keeping its metadata, or create a
// synthetic pack. The result is published in one step. It returns the
// number of usable products.
func (c *Catalog) Merge(products []billing.Product) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cur.Load()
	packs := maps.Clone(cur.packs)
	usable := 0
	for _, prod := range products {
		if prod.ID == "" || prod.Price == "" {
			continue
		}
		usable++
		if p, ok := packs[prod.ID]; ok {
			p.Price = prod.Price
			p.PriceValue = prod.PriceValue
			packs[prod.ID] = p
			continue
		}
		packs[prod.ID] = synthetic(prod.ID, prod.Price, prod.PriceValue)
	}
	c.cur.Store(&snapshot{order: cur.order, packs: packs})
	return usable
}

// Set inserts or replaces a pack by id.
func (c *Catalog) Set(p Pack) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cur.Load()
	packs := maps.Clone(cur.packs)
	packs[p.PackID] = p
	c.cur.Store(&snapshot{order: cur.order, packs: packs})
}

// Packs returns the static packs in display order.
func (c *Catalog) Packs() []Pack {
	cur := c.cur.Load()
	out := make([]Pack, 0, len(cur.order))
	for _, id := range cur.order {
		out = append(out, cur.packs[id])
	}
	return out
}

// Pack looks up a pack by id, including synthetic ones.
func (c *Catalog) Pack(id string) (Pack, bool) {
	p, ok := c.cur.Load().packs[id]
	return p, ok
}

// Contains reports whether id is known.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.cur.Load().packs[id]
	return ok
}

// Len returns the number of known packs, including synthetic ones.
func (c *Catalog) Len() int {
	return len(c.cur.Load().packs)
}
