package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"tasmil/server/internal/models"
	"tasmil/server/internal/services"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatarUrl"`
}

type LinkAccountRequest struct {
	Provider    string `json:"provider" binding:"required"`
	ExternalID  string `json:"externalId" binding:"required"`
	Username    string `json:"username"`
	AccessToken string `json:"accessToken"`
}

func handleGetMe(users *services.UsersService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetMe(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, user)
	}
}

func handleUpdateProfile(users *services.UsersService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid profile payload")
			return
		}
		input := services.UpdateProfileInput{Email: req.Email}
		if req.Username != nil {
			input.Username = *req.Username
		}
		if req.AvatarURL != nil {
			input.AvatarURL = *req.AvatarURL
		}
		user, err := users.UpdateProfile(c.Request.Context(), currentUserID(c), input)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, user)
	}
}

func handleGetPublicProfile(users *services.UsersService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetByUsername(c.Request.Context(), c.Param("username"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		if user == nil {
			respondError(c, appLogger, apperr.NotFound("USER_NOT_FOUND", "User not found"))
			return
		}
		profile, err := users.GetPublicProfile(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, profile)
	}
}

func handlePointsHistory(users *services.UsersService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		limit := queryInt(c, "limit", 20)
		items, total, err := users.GetPointsHistory(c.Request.Context(), currentUserID(c), page, limit)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"items": items, "meta": gin.H{"total": total, "page": page, "limit": limit}})
	}
}

func handleReferrals(users *services.UsersService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		referrals, err := users.GetReferrals(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, referrals)
	}
}

func handleDailyLogin(users *services.UsersService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		points, err := users.DailyLoginReward(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"pointsAwarded": points})
	}
}

func handleLeaderboard(analytics *services.AnalyticsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := analytics.Leaderboard(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "limit", 25))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, entries)
	}
}

func handleStreakLeaderboard(analytics *services.AnalyticsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := analytics.StreakLeaderboard(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "limit", 25))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, entries)
	}
}

func handleMyRank(analytics *services.AnalyticsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rank, err := analytics.UserRank(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"rank": rank})
	}
}

func handleNotifications(notifications *services.NotificationsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := notifications.ListForUser(c.Request.Context(), currentUserID(c), queryInt(c, "limit", 50))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, items)
	}
}

func handleListLinkedAccounts(verification *services.VerificationService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := verification.ListLinkedAccounts(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, accounts)
	}
}

func handleLinkAccount(verification *services.VerificationService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LinkAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "provider and externalId are required")
			return
		}
		account, err := verification.LinkAccount(c.Request.Context(), currentUserID(c), services.LinkInput{
			Provider:    models.SocialProvider(req.Provider),
			ExternalID:  req.ExternalID,
			Username:    req.Username,
			AccessToken: req.AccessToken,
		})
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondCreated(c, account)
	}
}

func handleUnlinkAccount(verification *services.VerificationService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := models.SocialProvider(c.Param("provider"))
		if err := verification.UnlinkAccount(c.Request.Context(), currentUserID(c), provider); err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"unlinked": true})
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
