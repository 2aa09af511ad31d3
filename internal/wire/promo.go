package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/munchify/internal/domain/promo"
)

// Promo codes the GET /promos/{code} response.
type Promo promo.Rule

func (p *Promo) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(p.Code)
	e.FieldStart("type")
	e.Str(string(p.Kind))
	e.FieldStart("value")
	EncodeDecimal(e, p.Value)
	e.FieldStart("min_items")
	e.Int(p.MinItems)
	e.FieldStart("description")
	e.Str(p.Description)
	if p.ValidFrom != nil {
		e.FieldStart("valid_from")
		EncodeTime(e, *p.ValidFrom)
	}
	if p.ValidUntil != nil {
		e.FieldStart("valid_until")
		EncodeTime(e, *p.ValidUntil)
	}
	e.FieldStart("max_uses")
	e.Int(p.MaxUses)
	e.FieldStart("uses")
	e.Int(p.Uses)
	e.ObjEnd()
}

func (p *Promo) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			p.Code, err = DecodeOptStr(d)
		case "type":
			var kind string
			kind, err = DecodeOptStr(d)
			p.Kind = promo.Kind(kind)
		case "value":
			p.Value, err = DecodeDecimal(d)
		case "min_items":
			p.MinItems, err = d.Int()
		case "description":
			p.Description, err = DecodeOptStr(d)
		case "valid_from":
			t, derr := DecodeTime(d)
			if derr == nil && !t.IsZero() {
				p.ValidFrom = &t
			}
			err = derr
		case "valid_until":
			t, derr := DecodeTime(d)
			if derr == nil && !t.IsZero() {
				p.ValidUntil = &t
			}
			err = derr
		case "max_uses":
			p.MaxUses, err = d.Int()
		case "uses":
			p.Uses, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}
