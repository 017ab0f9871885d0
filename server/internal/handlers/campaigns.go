package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"tasmil/server/internal/services"
	"tasmil/shared/logger"
)

func handleListCampaigns(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := services.CampaignQuery{
			Category: c.Query("category"),
			Search:   c.Query("search"),
			Page:     queryInt(c, "page", 1),
			Limit:    queryInt(c, "limit", 20),
		}
		if raw := c.Query("active"); raw != "" {
			if active, err := strconv.ParseBool(raw); err == nil {
				query.Active = &active
			}
		}
		page, err := campaigns.List(c.Request.Context(), query)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, page)
	}
}

func handleGetCampaign(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := campaigns.Get(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, detail)
	}
}

func handleJoinCampaign(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := campaigns.Join(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondCreated(c, gin.H{"joined": true})
	}
}

func handleCampaignTasks(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := campaigns.GetTasks(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, tasks)
	}
}

func handleClaimCampaign(campaigns *services.CampaignsService, notifications *services.NotificationsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		result, err := campaigns.ClaimCampaign(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		notifications.NotifyClaim(c.Request.Context(), userID,
			"Campaign reward claimed",
			"You earned "+strconv.Itoa(result.Total)+" points")
		respondOK(c, result)
	}
}
