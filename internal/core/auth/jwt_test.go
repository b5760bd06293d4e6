package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTer(ttl time.Duration) *JWTer {
	return &JWTer{Secret: []byte("test-secret"), Issuer: "grimoire-api", TTL: ttl}
}

func TestJWTer(t *testing.T) {
	t.Run("issue then parse round trip", func(t *testing.T) {
		j := newTestJWTer(time.Hour)
		tok, err := j.Issue("user-1")
		require.NoError(t, err)
		require.NotEmpty(t, tok)

		claims, err := j.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UID)
		assert.Equal(t, "grimoire-api", claims.Issuer)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		j := newTestJWTer(-10 * time.Minute) // beyond the 60s leeway
		tok, err := j.Issue("user-1")
		require.NoError(t, err)

		_, err = j.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("token signed with a different secret is rejected", func(t *testing.T) {
		j := newTestJWTer(time.Hour)
		tok, err := j.Issue("user-1")
		require.NoError(t, err)

		other := &JWTer{Secret: []byte("other-secret"), Issuer: "grimoire-api", TTL: time.Hour}
		_, err = other.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		j := newTestJWTer(time.Hour)
		_, err := j.Parse("not-a-token")
		assert.Error(t, err)
	})

	t.Run("wrong issuer is rejected", func(t *testing.T) {
		other := &JWTer{Secret: []byte("test-secret"), Issuer: "someone-else", TTL: time.Hour}
		tok, err := other.Issue("user-1")
		require.NoError(t, err)

		j := newTestJWTer(time.Hour)
		_, err = j.Parse(tok)
		assert.Error(t, err)
	})
}
