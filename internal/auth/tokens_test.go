package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", "buyer@acmefoods.com", false, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "buyer@acmefoods.com", claims.Email)
	assert.False(t, claims.IsAdmin)
}

func TestParseToken_ExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", "buyer@acmefoods.com", false, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_WrongSecretRejected(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", "buyer@acmefoods.com", true, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken([]byte("other-secret"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_GarbageRejected(t *testing.T) {
	_, err := ParseToken(testSecret, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCarriesAdminFlag(t *testing.T) {
	token, err := GenerateToken(testSecret, "admin-1", "ops@meatline.example", true, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}
