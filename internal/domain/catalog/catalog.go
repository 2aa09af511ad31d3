// Package catalog holds the static, read-only list of purchasable items.
package catalog

import (
	"os"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/munchify/assets"
	"github.com/xenking/munchify/internal/wire"
)

// Item is a purchasable menu entry.
type Item struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Image       string
	Category    string
	Description string
}

// Catalog is an immutable id → Item lookup table that preserves menu order.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// New builds a Catalog. Ids must be unique and prices non-negative.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for _, it := range items {
		if it.ID == "" {
			return nil, errors.Errorf("item %q: empty id", it.Name)
		}
		if _, dup := c.byID[it.ID]; dup {
			return nil, errors.Errorf("duplicate item id %q", it.ID)
		}
		if it.Price.IsNegative() {
			return nil, errors.Errorf("item %q: negative price %s", it.ID, it.Price)
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Default returns the menu embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(assets.Menu)
}

// Open loads a menu from a JSON file.
func Open(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read menu")
	}
	return Parse(data)
}

// Parse decodes a JSON array of menu items.
func Parse(data []byte) (*Catalog, error) {
	var items []Item
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var it Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id", "_id":
				it.ID, err = wire.DecodeID(d)
			case "name":
				it.Name, err = d.Str()
			case "price":
				it.Price, err = wire.DecodeDecimal(d)
			case "image":
				it.Image, err = wire.DecodeOptStr(d)
			case "category":
				it.Category, err = wire.DecodeOptStr(d)
			case "description":
				it.Description, err = wire.DecodeOptStr(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	return New(items)
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Price returns the unit price of id.
func (c *Catalog) Price(id string) (decimal.Decimal, bool) {
	it, ok := c.Lookup(id)
	return it.Price, ok
}

// Items returns all items in menu order. The slice is a copy.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Category returns the items of a category in menu order. An empty category
// selects everything.
func (c *Catalog) Category(name string) []Item {
	if name == "" || name == "All" {
		return c.Items()
	}
	var out []Item
	for _, it := range c.items {
		if it.Category == name {
			out = append(out, it)
		}
	}
	return out
}

// Categories returns the distinct category names, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range c.items {
		if _, ok := seen[it.Category]; ok || it.Category == "" {
			continue
		}
		seen[it.Category] = struct{}{}
		out = append(out, it.Category)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }
