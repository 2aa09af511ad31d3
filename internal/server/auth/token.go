// Package auth issues and verifies the bearer tokens of the REST API.
package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of an access token.
const DefaultTTL = 24 * time.Hour

var (
	// ErrMissing is returned when a request carries no bearer token.
	ErrMissing = errors.New("missing authorization header")
	// ErrExpired is returned for a well-formed token past its expiry.
	ErrExpired = errors.New("token has expired")
	// ErrInvalid is returned for a malformed or wrongly signed token.
	ErrInvalid = errors.New("invalid token")
)

// Tokens signs and verifies HS256 access tokens whose subject is the user ID.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates Tokens signing with secret. A zero ttl means DefaultTTL.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for userID.
func (t *Tokens) Issue(userID int64) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks raw and returns the user ID it was issued for.
func (t *Tokens) Verify(raw string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrExpired
	case err != nil:
		return 0, ErrInvalid
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalid
	}
	return id, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		if header == "" {
			return "", ErrMissing
		}
		return "", ErrInvalid
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalid
	}
	return token, nil
}
