package handlers

import (
	"github.com/gin-gonic/gin"

	"tasmil/server/internal/services"
	"tasmil/shared/logger"
)

type NonceRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

type LoginRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	ReferralCode  string `json:"referralCode"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func handleNonce(auth *services.AuthService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NonceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "walletAddress is required")
			return
		}
		message, err := auth.IssueNonce(c.Request.Context(), req.WalletAddress)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"message": message})
	}
}

func handleLogin(auth *services.AuthService, appLogger *logger.Logger, cookieTTL int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "walletAddress and signature are required")
			return
		}
		pair, user, err := auth.Login(c.Request.Context(), req.WalletAddress, req.Signature, req.ReferralCode)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		setAuthCookies(c, pair, cookieTTL)
		respondOK(c, gin.H{"tokens": pair, "user": user})
	}
}

func handleRefresh(auth *services.AuthService, appLogger *logger.Logger, cookieTTL int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		_ = c.ShouldBindJSON(&req)
		token := req.RefreshToken
		if token == "" {
			token, _ = c.Cookie("refresh_token")
		}
		if token == "" {
			respondBadRequest(c, "refreshToken is required")
			return
		}
		pair, err := auth.Refresh(c.Request.Context(), token)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		setAuthCookies(c, pair, cookieTTL)
		respondOK(c, gin.H{"tokens": pair})
	}
}

func handleLogout(auth *services.AuthService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Logout(c.Request.Context(), currentUserID(c)); err != nil {
			respondError(c, appLogger, err)
			return
		}
		clearAuthCookies(c)
		respondOK(c, gin.H{"loggedOut": true})
	}
}

func setAuthCookies(c *gin.Context, pair *services.TokenPair, refreshTTL int) {
	c.SetCookie("access_token", pair.AccessToken, pair.AccessExpiresIn, "/", "", true, true)
	c.SetCookie("refresh_token", pair.RefreshToken, refreshTTL, "/api/v1/auth", "", true, true)
}

func clearAuthCookies(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", true, true)
	c.SetCookie("refresh_token", "", -1, "/api/v1/auth", "", true, true)
}
