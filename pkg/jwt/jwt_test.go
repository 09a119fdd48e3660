package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, 2*time.Hour)

	token, err := manager.GenerateToken(3, 9, "chef")
	require.NoError(t, err)

	claims, err := manager.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
	assert.Equal(t, uint(9), claims.RestaurantID)
	assert.Equal(t, "chef", claims.Username)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret", time.Hour, time.Hour).GenerateToken(1, 1, "a")
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour, time.Hour).VerifyToken(token)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	manager := NewJWTManager("secret", -time.Minute, time.Hour)
	token, err := manager.GenerateToken(1, 1, "a")
	require.NoError(t, err)

	_, err = manager.VerifyToken(token)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, 2*time.Hour)
	token, err := manager.GenerateToken(5, 2, "cashier")
	require.NoError(t, err)

	refreshed, err := manager.RefreshToken(token)
	require.NoError(t, err)

	claims, err := manager.VerifyToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, uint(5), claims.UserID)
	assert.Equal(t, uint(2), claims.RestaurantID)
}
