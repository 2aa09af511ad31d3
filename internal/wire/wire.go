// Package wire is the JSON codec for the REST API, shared by the client and
// the server.
//
// Domain types are wrapped by defined types with identical layout, so a
// value converts freely: wire.Marshal((*wire.Order)(&o)).
package wire

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encoder is a value that can write itself as JSON.
type Encoder interface {
	Encode(e *jx.Encoder)
}

// Decoder is a value that can read itself from JSON.
type Decoder interface {
	Decode(d *jx.Decoder) error
}

// Marshal encodes v to JSON.
func Marshal(v Encoder) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	v.Encode(e)
	return append([]byte(nil), e.Bytes()...)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v Decoder) error {
	if err := v.Decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrap(err, "decode json")
	}
	return nil
}

// DecodeDecimal reads a JSON number or numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		raw, err := d.Raw()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(raw))
	}
}

// EncodeDecimal writes v as a JSON number.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

// DecodeID reads an identifier that may be encoded as a string or a number.
func DecodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return DecodeOptStr(d)
	}
}

// DecodeOptStr reads a string that may be null.
func DecodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"Mon, 02 Jan 2006 15:04:05 GMT",
}

// DecodeTime reads an RFC 3339 timestamp; naive ISO timestamps are taken as UTC.
func DecodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := DecodeOptStr(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid timestamp %q", s)
}

// EncodeTime writes t in RFC 3339 with sub-second precision.
func EncodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// Reply is the {message} / {error} envelope used by most endpoints.
type Reply struct {
	Message string
	Error   string
}

func (r *Reply) Encode(e *jx.Encoder) {
	e.ObjStart()
	if r.Message != "" {
		e.FieldStart("message")
		e.Str(r.Message)
	}
	if r.Error != "" {
		e.FieldStart("error")
		e.Str(r.Error)
	}
	e.ObjEnd()
}

func (r *Reply) Decode(d *jx.Decoder) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "message":
			r.Message, err = DecodeOptStr(d)
		case "error", "msg":
			r.Error, err = DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
