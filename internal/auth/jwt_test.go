package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "travel")

	token, err := m.GenerateToken("user_1", "org_1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID())
	assert.Equal(t, "org_1", claims.OrgID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", "travel")

	t.Run("expired", func(t *testing.T) {
		token, err := m.GenerateToken("u", "o", RoleMember, -time.Minute)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTManager("other", "travel").GenerateToken("u", "o", RoleMember, time.Hour)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewJWTManager("secret", "someone-else").GenerateToken("u", "o", RoleMember, time.Hour)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing org", func(t *testing.T) {
		token, err := m.GenerateToken("u", "", RoleMember, time.Hour)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := &Claims{OrgID: "o", RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "travel"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}
