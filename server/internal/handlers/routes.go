package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tasmil/server/internal/services"
	"tasmil/shared/logger"
	"tasmil/shared/ratelimit"
)

// Services bundles everything the routes need.
type Services struct {
	Auth          *services.AuthService
	Users         *services.UsersService
	Campaigns     *services.CampaignsService
	UserTasks     *services.UserTasksService
	Claims        *services.ClaimsService
	Verification  *services.VerificationService
	Notifications *services.NotificationsService
	Analytics     *services.AnalyticsService
	AuthLimiter   *ratelimit.KeyedLimiter
	RefreshTTL    int
}

func RegisterRoutes(router *gin.Engine, appLogger *logger.Logger) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is running"})
	})
}

func RegisterAPIRoutes(router *gin.Engine, appLogger *logger.Logger, svc *Services) {
	apiGroup := router.Group("/api/v1")

	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := apiGroup.Group("/auth")
	authGroup.Use(RateLimit(svc.AuthLimiter, appLogger))
	{
		authGroup.POST("/nonce", handleNonce(svc.Auth, appLogger))
		authGroup.POST("/login", handleLogin(svc.Auth, appLogger, svc.RefreshTTL))
		authGroup.POST("/refresh", handleRefresh(svc.Auth, appLogger, svc.RefreshTTL))
		authGroup.POST("/logout", AuthRequired(svc.Auth, appLogger), handleLogout(svc.Auth, appLogger))
	}

	public := apiGroup.Group("")
	public.Use(AuthOptional(svc.Auth))
	{
		public.GET("/campaigns", handleListCampaigns(svc.Campaigns, appLogger))
		public.GET("/campaigns/:id", handleGetCampaign(svc.Campaigns, appLogger))
		public.GET("/campaigns/:id/tasks", handleCampaignTasks(svc.Campaigns, appLogger))
		public.GET("/leaderboard", handleLeaderboard(svc.Analytics, appLogger))
		public.GET("/leaderboard/streaks", handleStreakLeaderboard(svc.Analytics, appLogger))
		public.GET("/users/:username", handleGetPublicProfile(svc.Users, appLogger))
	}

	authed := apiGroup.Group("")
	authed.Use(AuthRequired(svc.Auth, appLogger))
	{
		authed.GET("/me", handleGetMe(svc.Users, appLogger))
		authed.PATCH("/me", handleUpdateProfile(svc.Users, appLogger))
		authed.GET("/me/points", handlePointsHistory(svc.Users, appLogger))
		authed.GET("/me/referrals", handleReferrals(svc.Users, appLogger))
		authed.GET("/me/rank", handleMyRank(svc.Analytics, appLogger))
		authed.GET("/me/notifications", handleNotifications(svc.Notifications, appLogger))
		authed.POST("/me/daily-login", handleDailyLogin(svc.Users, appLogger))

		authed.GET("/me/accounts", handleListLinkedAccounts(svc.Verification, appLogger))
		authed.POST("/me/accounts", handleLinkAccount(svc.Verification, appLogger))
		authed.DELETE("/me/accounts/:provider", handleUnlinkAccount(svc.Verification, appLogger))

		authed.POST("/campaigns/:id/join", handleJoinCampaign(svc.Campaigns, appLogger))
		authed.POST("/campaigns/:id/claim", handleClaimCampaign(svc.Campaigns, svc.Notifications, appLogger))

		authed.GET("/tasks/:id/status", handleTaskStatus(svc.UserTasks, appLogger))
		authed.POST("/tasks/:id/proof", handleSubmitProof(svc.UserTasks, appLogger))
		authed.POST("/tasks/:id/verify", handleVerifyTask(svc.Verification, appLogger))
		authed.POST("/tasks/:id/claim", handleClaimTask(svc.Claims, svc.Notifications, appLogger))
	}

	admin := apiGroup.Group("/admin")
	admin.Use(AuthRequired(svc.Auth, appLogger), AdminRequired())
	{
		admin.POST("/campaigns", handleCreateCampaign(svc.Campaigns, appLogger))
		admin.PATCH("/campaigns/:id", handleUpdateCampaign(svc.Campaigns, appLogger))
		admin.DELETE("/campaigns/:id", handleDeleteCampaign(svc.Campaigns, appLogger))
		admin.POST("/campaigns/:id/tasks", handleAddTask(svc.Campaigns, appLogger))
		admin.PATCH("/tasks/:id", handleUpdateTask(svc.Campaigns, appLogger))
		admin.DELETE("/tasks/:id", handleRemoveTask(svc.Campaigns, appLogger))

		admin.GET("/submissions", handleListSubmissions(svc.UserTasks, appLogger))
		admin.POST("/submissions/:id/approve", handleApproveSubmission(svc.UserTasks, appLogger))
		admin.POST("/submissions/:id/reject", handleRejectSubmission(svc.UserTasks, appLogger))

		admin.POST("/notifications", handleBroadcast(svc.Notifications, appLogger))
		admin.GET("/stats", handleStats(svc.Analytics, appLogger))
	}

	appLogger.Info("API routes registered under /api/v1")
}
