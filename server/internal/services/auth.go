package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/cache"
	"tasmil/shared/config"
	"tasmil/shared/logger"
)

// AuthService implements the wallet challenge flow: a one-shot nonce is
// signed with personal_sign, the recovered address identifies the user,
// and a JWT pair comes back. Refresh tokens rotate; their ids live in
// redis so logout and rotation can revoke them.
type AuthService struct {
	users         *UsersService
	cache         *cache.Cache
	cfg           *config.Config
	log           *logger.Logger
	accessSecret  []byte
	refreshSecret []byte
}

func NewAuthService(users *UsersService, cacheClient *cache.Cache, cfg *config.Config, accessSecret, refreshSecret string, appLogger *logger.Logger) *AuthService {
	return &AuthService{
		users:         users,
		cache:         cacheClient,
		cfg:           cfg,
		log:           appLogger,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}
}

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	AccessExpiresIn  int    `json:"accessExpiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
}

// Claims is the JWT payload for both token kinds.
type Claims struct {
	UserID  string `json:"uid"`
	Role    string `json:"role"`
	TokenID string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// IssueNonce creates the single-use login challenge for a wallet. The
// client signs the returned message verbatim.
func (s *AuthService) IssueNonce(ctx context.Context, walletAddress string) (string, error) {
	if !common.IsHexAddress(walletAddress) {
		return "", apperr.BadRequest("INVALID_WALLET_ADDRESS", "Not a valid wallet address")
	}
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(raw)

	key := nonceKey(walletAddress)
	ttl := time.Duration(s.cfg.Auth.NonceTTLSeconds) * time.Second
	if err := s.cache.Set(ctx, key, nonce, ttl); err != nil {
		return "", err
	}
	return s.cfg.Auth.LoginMessagePrefix + nonce, nil
}

// Login verifies the signed nonce, resolves or creates the user, applies
// the streak update, and issues tokens. The nonce burns on first read.
func (s *AuthService) Login(ctx context.Context, walletAddress, signature, referralCode string) (*TokenPair, *models.User, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, nil, apperr.BadRequest("INVALID_WALLET_ADDRESS", "Not a valid wallet address")
	}

	nonce, err := s.cache.GetDel(ctx, nonceKey(walletAddress))
	if err != nil {
		return nil, nil, err
	}
	if nonce == "" {
		return nil, nil, apperr.Unauthorized("NONCE_EXPIRED", "Request a new login nonce")
	}

	message := s.cfg.Auth.LoginMessagePrefix + nonce
	recovered, err := recoverSigner(message, signature)
	if err != nil {
		return nil, nil, apperr.Unauthorized("INVALID_SIGNATURE", "Signature verification failed")
	}
	if !strings.EqualFold(recovered.Hex(), walletAddress) {
		return nil, nil, apperr.Unauthorized("INVALID_SIGNATURE", "Signature does not match wallet")
	}

	user, err := s.users.EnsureWalletUser(ctx, walletAddress, referralCode)
	if err != nil {
		return nil, nil, err
	}
	if err := s.users.HandleLoginSuccess(ctx, user.ID); err != nil {
		s.log.Error("Login streak update failed", "user", user.ID, "error", err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh rotates the pair. The presented token must carry a tokenId still
// present in redis; rotation replaces it so a replayed token fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken, s.refreshSecret)
	if err != nil || claims.TokenID == "" {
		return nil, apperr.Unauthorized("INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired")
	}

	stored, err := s.cache.Get(ctx, refreshKey(claims.UserID))
	if err != nil {
		return nil, err
	}
	if stored == "" || stored != claims.TokenID {
		return nil, apperr.Unauthorized("INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthorized("INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired")
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes the stored refresh token id. Access tokens simply expire.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, refreshKey(userID))
}

// VerifyAccessToken validates a bearer token and returns its claims.
func (s *AuthService) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.parseToken(tokenString, s.accessSecret)
	if err != nil {
		return nil, apperr.Unauthorized("INVALID_LOGIN", "Invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := time.Now()
	accessTTL := time.Duration(s.cfg.Auth.AccessTTLSeconds) * time.Second
	refreshTTL := time.Duration(s.cfg.Auth.RefreshTTLSeconds) * time.Second
	tokenID := uuid.NewString()

	accessToken, err := s.signToken(Claims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
		},
	}, s.accessSecret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signToken(Claims{
		UserID:  user.ID,
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(refreshTTL)),
		},
	}, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, refreshKey(user.ID), tokenID, refreshTTL); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  int(accessTTL.Seconds()),
		RefreshExpiresIn: int(refreshTTL.Seconds()),
	}, nil
}

func (s *AuthService) signToken(claims Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *AuthService) parseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// recoverSigner reverses personal_sign: the message gets the EIP-191
// prefix, and the 65-byte signature's recovery id is normalized from the
// 27/28 convention wallets use.
func recoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexDecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != 65 {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

func hexDecodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimPrefix(signature, "0x")
	return hex.DecodeString(signature)
}

func nonceKey(walletAddress string) string {
	return "auth:nonce:" + strings.ToLower(walletAddress)
}

func refreshKey(userID string) string {
	return "auth:refresh:" + userID
}
