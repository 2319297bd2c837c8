package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMintAndVerify(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, err := tokens.Mint(7, "camille", "client")
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, 7, claims.UserID)
	require.Equal(t, "camille", claims.Username)
	require.Equal(t, "client", claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens("first", time.Hour).Mint(7, "camille", "client")
	require.NoError(t, err)

	_, err = NewTokens("second", time.Hour).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	signed, err := NewTokens("secret", -time.Minute).Mint(7, "camille", "client")
	require.NoError(t, err)

	_, err = NewTokens("secret", -time.Minute).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewTokens("secret", time.Hour).Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
