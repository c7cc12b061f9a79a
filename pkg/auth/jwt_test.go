package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken("7", "user")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID())
	assert.Equal(t, "user", claims.Role)
}

func TestJWTManager_RejectsForeignSecretAndExpiry(t *testing.T) {
	issuer := NewJWTManager("one", time.Minute)
	verifier := NewJWTManager("two", time.Minute)

	token, err := issuer.GenerateAccessToken("7", "")
	require.NoError(t, err)
	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)

	expired := NewJWTManager("one", -time.Minute)
	token, err = expired.GenerateAccessToken("7", "")
	require.NoError(t, err)
	_, err = issuer.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTManager_RequiresSubject(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	_, err := m.GenerateAccessToken("", "")
	assert.Error(t, err)
}
