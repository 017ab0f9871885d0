package services

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(nil, nil, newTestConfig(), "access-secret", "refresh-secret", newTestLogger(t))
}

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(key.PublicKey)
	message := "Tasmil Login Nonce: deadbeef"

	t.Run("RecoversSigningWallet", func(t *testing.T) {
		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
		require.NoError(t, err)

		recovered, err := recoverSigner(message, "0x"+hex.EncodeToString(sig))
		require.NoError(t, err)
		assert.Equal(t, wallet, recovered)
	})

	t.Run("AcceptsLegacyRecoveryID", func(t *testing.T) {
		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
		require.NoError(t, err)
		// Wallets emit v as 27/28 rather than 0/1.
		sig[64] += 27

		recovered, err := recoverSigner(message, hex.EncodeToString(sig))
		require.NoError(t, err)
		assert.Equal(t, wallet, recovered)
	})

	t.Run("DifferentMessageRecoversDifferentAddress", func(t *testing.T) {
		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
		require.NoError(t, err)

		recovered, err := recoverSigner("Tasmil Login Nonce: other", hex.EncodeToString(sig))
		require.NoError(t, err)
		assert.NotEqual(t, wallet, recovered)
	})

	t.Run("RejectsShortSignature", func(t *testing.T) {
		_, err := recoverSigner(message, "0xdeadbeef")
		assert.Error(t, err)
	})
}

func TestAccessTokens(t *testing.T) {
	svc := newAuthService(t)

	t.Run("SignAndVerifyRoundTrip", func(t *testing.T) {
		token, err := svc.signToken(Claims{
			UserID: "user-1",
			Role:   "user",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}, svc.accessSecret)
		require.NoError(t, err)

		claims, err := svc.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "user", claims.Role)
	})

	t.Run("RejectsExpiredToken", func(t *testing.T) {
		token, err := svc.signToken(Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}, svc.accessSecret)
		require.NoError(t, err)

		_, err = svc.VerifyAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("RejectsRefreshSecretSignature", func(t *testing.T) {
		token, err := svc.signToken(Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}, svc.refreshSecret)
		require.NoError(t, err)

		_, err = svc.VerifyAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := svc.VerifyAccessToken("not-a-token")
		assert.Error(t, err)
	})
}
