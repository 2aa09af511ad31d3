// Package cart implements the shared shopping cart: a mapping from catalog
// item id to a positive quantity, with derived totals and change
// notifications.
//
// A Cart is safe for concurrent use. Subscribers are called synchronously
// after the mutation is applied and outside the internal lock, so they may
// read the cart.
package cart

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Kind identifies a cart mutation.
type Kind int

const (
	// Added means one unit was added.
	Added Kind = iota + 1
	// Removed means one unit was removed.
	Removed
	// Cleared means the cart was emptied.
	Cleared
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Change describes an applied mutation. Quantity is the item's quantity after
// the change; it is zero for Cleared.
type Change struct {
	Kind     Kind
	ItemID   string
	Quantity int
}

// Line is one cart entry.
type Line struct {
	ItemID   string
	Quantity int
}

// Prices resolves unit prices for item ids.
type Prices interface {
	Price(id string) (decimal.Decimal, bool)
}

// Cart is the cart state container.
type Cart struct {
	mu    sync.Mutex
	items map[string]int

	subsMu  sync.Mutex
	subs    map[uint64]func(Change)
	nextSub uint64
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{
		items: make(map[string]int),
		subs:  make(map[uint64]func(Change)),
	}
}

// Add increments the quantity of id, inserting it at 1.
func (c *Cart) Add(id string) {
	c.mu.Lock()
	c.items[id]++
	q := c.items[id]
	c.mu.Unlock()

	c.notify(Change{Kind: Added, ItemID: id, Quantity: q})
}

// Remove decrements the quantity of id and deletes the entry when it reaches
// zero. Removing an absent id does nothing.
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	q, ok := c.items[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	q--
	if q <= 0 {
		delete(c.items, id)
		q = 0
	} else {
		c.items[id] = q
	}
	c.mu.Unlock()

	c.notify(Change{Kind: Removed, ItemID: id, Quantity: q})
}

// Clear empties the cart. Clearing an empty cart does nothing.
func (c *Cart) Clear() {
	c.mu.Lock()
	if len(c.items) == 0 {
		c.mu.Unlock()
		return
	}
	c.items = make(map[string]int)
	c.mu.Unlock()

	c.notify(Change{Kind: Cleared})
}

// Quantity returns the quantity of id, zero when absent.
func (c *Cart) Quantity(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[id]
}

// Count returns the total number of units in the cart.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, q := range c.items {
		n += q
	}
	return n
}

// Empty reports whether the cart has no entries.
func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Lines returns a snapshot of the cart sorted by item id.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	lines := make([]Line, 0, len(c.items))
	for id, q := range c.items {
		lines = append(lines, Line{ItemID: id, Quantity: q})
	}
	c.mu.Unlock()

	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines
}

// Total returns Σ price × quantity. Ids unknown to prices contribute zero.
func (c *Cart) Total(prices Prices) decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines() {
		p, ok := prices.Price(l.ItemID)
		if !ok {
			continue
		}
		total = total.Add(p.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Subscribe registers fn to be called after every mutation. The returned
// function unregisters it.
func (c *Cart) Subscribe(fn func(Change)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

func (c *Cart) notify(ch Change) {
	c.subsMu.Lock()
	ids := make([]uint64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Change), len(ids))
	for i, id := range ids {
		fns[i] = c.subs[id]
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
