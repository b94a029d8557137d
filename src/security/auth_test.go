package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/config"
)

func init() {
	config.Cfg = &config.AppConfig{
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	svc := NewAuthService("test-secret-key-that-is-long-enough-123")

	token, err := svc.GenerateToken("42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sub, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	signer := NewAuthService("test-secret-key-that-is-long-enough-123")
	verifier := NewAuthService("a-completely-different-secret-key-456")

	token, err := signer.GenerateToken("42")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	t.Parallel()

	svc := NewAuthService("test-secret-key-that-is-long-enough-123")

	a, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	svc := NewAuthService("test-secret-key-that-is-long-enough-123")

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, svc.CompareHashAndPassword(hash, "correct horse battery staple"))
	assert.Error(t, svc.CompareHashAndPassword(hash, "wrong password"))
}
