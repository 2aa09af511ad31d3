package checkout

import (
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/munchify/internal/domain/order"
)

// ErrUnknownField is returned by Form.Set for an unsupported field name.
var ErrUnknownField = errors.New("unknown contact field")

// Form is the delivery contact form. It lives as long as the checkout page and
// is reset after a successful order.
type Form struct {
	mu      sync.Mutex
	contact order.Contact
}

// Fields lists the form fields in display order.
var Fields = []string{
	"firstName", "lastName", "email", "street", "city", "county", "zip", "country", "phone",
}

func field(c *order.Contact, name string) *string {
	switch name {
	case "firstName":
		return &c.FirstName
	case "lastName":
		return &c.LastName
	case "email":
		return &c.Email
	case "street":
		return &c.Street
	case "city":
		return &c.City
	case "county":
		return &c.County
	case "zip":
		return &c.Zip
	case "country":
		return &c.Country
	case "phone":
		return &c.Phone
	default:
		return nil
	}
}

// canonicalField returns the Fields entry matching name case-insensitively,
// or "" when there is none.
func canonicalField(name string) string {
	for _, n := range Fields {
		if strings.EqualFold(n, name) {
			return n
		}
	}
	return ""
}

// Set assigns a field. Names are matched case-insensitively.
func (f *Form) Set(name, value string) error {
	canonical := canonicalField(name)
	f.mu.Lock()
	defer f.mu.Unlock()

	p := field(&f.contact, canonical)
	if p == nil {
		return errors.Wrapf(ErrUnknownField, "%q (known: %s)", name, strings.Join(sortedFields(), ", "))
	}
	*p = strings.TrimSpace(value)
	return nil
}

// Get returns a field value. Names are matched like in Set.
func (f *Form) Get(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := field(&f.contact, canonicalField(name)); p != nil {
		return *p
	}
	return ""
}

// Values returns a copy of the contact block.
func (f *Form) Values() order.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contact
}

// Fill replaces the whole contact block.
func (f *Form) Fill(c order.Contact) {
	f.mu.Lock()
	f.contact = c
	f.contact.Username = ""
	f.mu.Unlock()
}

// Reset clears every field.
func (f *Form) Reset() {
	f.mu.Lock()
	f.contact = order.Contact{}
	f.mu.Unlock()
}

func sortedFields() []string {
	out := append([]string(nil), Fields...)
	sort.Strings(out)
	return out
}
