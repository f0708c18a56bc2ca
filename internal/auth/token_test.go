package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner([]byte("test-secret"))

	raw, issued, err := s.Sign("65f0c0ffee0000000000beef", "ada@example.com", KindAccess, time.Minute)
	require.NoError(t, err)

	claims, err := s.Parse(raw, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000beef", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestSignerRejects(t *testing.T) {
	s := NewSigner([]byte("test-secret"))
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	refresh, _, err := s.Sign("u1", "ada@example.com", KindRefresh, time.Hour)
	require.NoError(t, err)

	t.Run("wrong kind", func(t *testing.T) {
		_, err := s.Parse(refresh, KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSigner([]byte("other-secret"))
		other.now = s.now
		_, err := other.Parse(refresh, KindRefresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewSigner([]byte("test-secret"))
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		_, err := later.Parse(refresh, KindRefresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Parse("not.a.token", KindRefresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			Kind: KindRefresh,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "x",
				Subject:   "u1",
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = s.Parse(unsigned, KindRefresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
