package wire

import (
	"github.com/go-faster/jx"
)

// Credentials is the body of /auth/register and /auth/login.
type Credentials struct {
	Username string `json:"username" validate:"omitempty,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (c *Credentials) Encode(e *jx.Encoder) {
	e.ObjStart()
	if c.Username != "" {
		e.FieldStart("username")
		e.Str(c.Username)
	}
	e.FieldStart("email")
	e.Str(c.Email)
	e.FieldStart("password")
	e.Str(c.Password)
	e.ObjEnd()
}

func (c *Credentials) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			c.Username, err = DecodeOptStr(d)
		case "email":
			c.Email, err = DecodeOptStr(d)
		case "password":
			c.Password, err = DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// AuthToken is the successful login response.
type AuthToken struct {
	AccessToken string
	Username    string
}

func (t *AuthToken) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("access_token")
	e.Str(t.AccessToken)
	e.FieldStart("username")
	e.Str(t.Username)
	e.ObjEnd()
}

func (t *AuthToken) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "access_token":
			t.AccessToken, err = DecodeOptStr(d)
		case "username":
			t.Username, err = DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Me is the /auth/me response.
type Me struct {
	ID       int64
	Username string
	Email    string
}

func (m *Me) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(m.ID)
	e.FieldStart("username")
	e.Str(m.Username)
	e.FieldStart("email")
	e.Str(m.Email)
	e.ObjEnd()
}

func (m *Me) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			m.ID, err = d.Int64()
		case "username":
			m.Username, err = DecodeOptStr(d)
		case "email":
			m.Email, err = DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// AccountUpdate is the body of PATCH /auth/update. Empty fields are left
// unchanged. EmailSet records whether the client attempted to send an e-mail.
type AccountUpdate struct {
	Username string `json:"username" validate:"omitempty,min=3"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Email    string `json:"email"`
	EmailSet bool   `json:"-"`
}

func (u *AccountUpdate) Encode(e *jx.Encoder) {
	e.ObjStart()
	if u.Username != "" {
		e.FieldStart("username")
		e.Str(u.Username)
	}
	if u.Password != "" {
		e.FieldStart("password")
		e.Str(u.Password)
	}
	if u.EmailSet {
		e.FieldStart("email")
		e.Str(u.Email)
	}
	e.ObjEnd()
}

func (u *AccountUpdate) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			u.Username, err = DecodeOptStr(d)
		case "password":
			u.Password, err = DecodeOptStr(d)
		case "email":
			u.EmailSet = true
			u.Email, err = DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
