package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/munchify/internal/domain/order"
)

// Contact codes order.Contact.
type Contact order.Contact

func (c *Contact) Encode(e *jx.Encoder) {
	e.ObjStart()
	for _, f := range c.fields() {
		if f.name == "username" && *f.value == "" {
			continue
		}
		e.FieldStart(f.name)
		e.Str(*f.value)
	}
	e.ObjEnd()
}

func (c *Contact) Decode(d *jx.Decoder) error {
	fields := c.fields()
	return d.Obj(func(d *jx.Decoder, key string) error {
		for _, f := range fields {
			if f.name == key {
				v, err := DecodeOptStr(d)
				*f.value = v
				return err
			}
		}
		return d.Skip()
	})
}

type contactField struct {
	name  string
	value *string
}

func (c *Contact) fields() []contactField {
	return []contactField{
		{"firstName", &c.FirstName},
		{"lastName", &c.LastName},
		{"email", &c.Email},
		{"street", &c.Street},
		{"city", &c.City},
		{"county", &c.County},
		{"zip", &c.Zip},
		{"country", &c.Country},
		{"phone", &c.Phone},
		{"username", &c.Username},
	}
}

// Items codes a list of order lines.
type Items []order.Item

func (items Items) Encode(e *jx.Encoder) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		EncodeDecimal(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func (items *Items) Decode(d *jx.Decoder) error {
	*items = (*items)[:0]
	return d.Arr(func(d *jx.Decoder) error {
		var it order.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				it.ID, err = DecodeID(d)
			case "name":
				it.Name, err = DecodeOptStr(d)
			case "quantity":
				it.Quantity, err = d.Int()
			case "price":
				it.Price, err = DecodeDecimal(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		*items = append(*items, it)
		return nil
	})
}

// OrderRequest codes the POST /orders body.
type OrderRequest order.Request

func (r *OrderRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("contact_info")
	(*Contact)(&r.Contact).Encode(e)
	e.FieldStart("items")
	Items(r.Items).Encode(e)
	e.FieldStart("total")
	EncodeDecimal(e, r.Total)
	if r.PromoCode != "" {
		e.FieldStart("promo_code")
		e.Str(r.PromoCode)
	}
	e.ObjEnd()
}

func (r *OrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "contact_info":
			err = (*Contact)(&r.Contact).Decode(d)
		case "items":
			items := Items{}
			err = items.Decode(d)
			r.Items = items
		case "total":
			r.Total, err = DecodeDecimal(d)
		case "promo_code":
			r.PromoCode, err = DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Receipt codes the POST /orders response.
type Receipt order.Receipt

func (r *Receipt) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("message")
	e.Str(r.Message)
	e.FieldStart("id")
	e.Int64(r.ID)
	e.FieldStart("total")
	EncodeDecimal(e, r.Total)
	e.ObjEnd()
}

func (r *Receipt) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "message":
			r.Message, err = DecodeOptStr(d)
		case "id":
			r.ID, err = d.Int64()
		case "total":
			r.Total, err = DecodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Order codes a stored order.
type Order order.Order

func (o *Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("created_at")
	EncodeTime(e, o.CreatedAt)
	e.FieldStart("total")
	EncodeDecimal(e, o.Total)
	e.FieldStart("discount")
	EncodeDecimal(e, o.Discount)
	if o.PromoCode != "" {
		e.FieldStart("promo_code")
		e.Str(o.PromoCode)
	}
	e.FieldStart("contact_info")
	(*Contact)(&o.Contact).Encode(e)
	e.FieldStart("items")
	Items(o.Items).Encode(e)
	e.ObjEnd()
}

func (o *Order) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Int64()
		case "created_at":
			o.CreatedAt, err = DecodeTime(d)
		case "total":
			o.Total, err = DecodeDecimal(d)
		case "discount":
			o.Discount, err = DecodeDecimal(d)
		case "promo_code":
			o.PromoCode, err = DecodeOptStr(d)
		case "contact_info":
			err = (*Contact)(&o.Contact).Decode(d)
		case "items":
			items := Items{}
			err = items.Decode(d)
			o.Items = items
		default:
			err = d.Skip()
		}
		return err
	})
}

// Orders codes the GET /orders response.
type Orders []order.Order

func (list Orders) Encode(e *jx.Encoder) {
	e.ArrStart()
	for i := range list {
		(*Order)(&list[i]).Encode(e)
	}
	e.ArrEnd()
}

func (list *Orders) Decode(d *jx.Decoder) error {
	*list = (*list)[:0]
	return d.Arr(func(d *jx.Decoder) error {
		var o order.Order
		if err := (*Order)(&o).Decode(d); err != nil {
			return err
		}
		*list = append(*list, o)
		return nil
	})
}
