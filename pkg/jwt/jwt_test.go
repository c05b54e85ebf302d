package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("test-secret", "test-refresh-secret", 1*time.Hour, 7*24*time.Hour)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "pilot@example.com", "provider")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "pilot@example.com", claims.Email)
	assert.Equal(t, "provider", claims.Role)
	assert.Equal(t, AccessToken, claims.TokenType)
}

func TestGenerateAndValidateRefreshToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateRefreshToken(userID, "pilot@example.com")
	require.NoError(t, err)

	claims, err := service.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RefreshToken, claims.TokenType)
}

func TestTokenTypeMismatchRejected(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	refresh, err := service.GenerateRefreshToken(userID, "pilot@example.com")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(refresh)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	service := newTestService()
	other := NewService("other-secret", "other-refresh-secret", 1*time.Hour, 7*24*time.Hour)
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "pilot@example.com", "consumer")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenDetected(t *testing.T) {
	service := NewService("test-secret", "test-refresh-secret", -1*time.Minute, 7*24*time.Hour)
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "pilot@example.com", "consumer")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.Error(t, err)
	assert.True(t, service.IsTokenExpired(token))
}

func TestIsTokenExpiredOnGarbage(t *testing.T) {
	service := newTestService()
	assert.False(t, service.IsTokenExpired("not-a-token"))
}
