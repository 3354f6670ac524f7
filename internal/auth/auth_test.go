package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewService("test-secret", "gateway-secret")

	token, err := service.GenerateToken(LoginAssertion{
		SteamID:       "76561198000000001",
		GatewaySecret: "gateway-secret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), token.Expiration, time.Minute)

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	require.Equal(t, "76561198000000001", claims.SteamID)
}

func TestGenerateTokenRejectsBadAssertion(t *testing.T) {
	service := NewService("test-secret", "gateway-secret")

	_, err := service.GenerateToken(LoginAssertion{
		SteamID:       "76561198000000001",
		GatewaySecret: "wrong",
	})
	require.ErrorIs(t, err, ErrInvalidLogin)

	_, err = service.GenerateToken(LoginAssertion{
		GatewaySecret: "gateway-secret",
	})
	require.ErrorIs(t, err, ErrInvalidLogin)
}

func TestValidateTokenRejectsForgedToken(t *testing.T) {
	service := NewService("test-secret", "gateway-secret")
	forger := NewService("other-secret", "gateway-secret")

	token, err := forger.GenerateToken(LoginAssertion{
		SteamID:       "76561198000000001",
		GatewaySecret: "gateway-secret",
	})
	require.NoError(t, err)

	_, err = service.ValidateToken(token.Token)
	require.Error(t, err)
}
