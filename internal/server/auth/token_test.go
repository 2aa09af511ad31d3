package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	raw, err := tokens.Issue(42)
	require.NoError(t, err)

	id, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	t.Run("Expired", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		defer func() { now = now.Add(-2 * time.Hour) }()

		_, err := tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := NewTokens("other", time.Hour)
		require.NoError(t, err)
		other.now = tokens.now

		_, err = other.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("WrongAlgorithm", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = tokens.Verify(forged)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tokens.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestNewTokens_EmptySecret(t *testing.T) {
	_, err := NewTokens("", 0)
	require.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer  abc ", "abc", nil},
		{"", "", ErrMissing},
		{"Basic abc", "", ErrInvalid},
		{"Bearer ", "", ErrInvalid},
		{"abc", "", ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
