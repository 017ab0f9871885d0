package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"tasmil/server/internal/models"
	"tasmil/server/internal/services"
	"tasmil/shared/logger"
)

type CampaignRequest struct {
	Title              string     `json:"title"`
	Description        *string    `json:"description"`
	Category           *string    `json:"category"`
	RewardPoints       int        `json:"rewardPoints"`
	MinTasksToComplete int        `json:"minTasksToComplete"`
	StartAt            *time.Time `json:"startAt"`
	EndAt              *time.Time `json:"endAt"`
}

type TaskRequest struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	URLAction    *string `json:"urlAction"`
	RewardPoints int     `json:"rewardPoints"`
	TaskType     string  `json:"taskType"`
	Config       string  `json:"config"`
	TaskOrder    int     `json:"taskOrder"`
}

type BroadcastRequest struct {
	UserID *string `json:"userId"`
	Title  string  `json:"title" binding:"required"`
	Body   string  `json:"body" binding:"required"`
}

func campaignInput(req CampaignRequest) services.CampaignInput {
	input := services.CampaignInput{
		Title:              req.Title,
		Description:        req.Description,
		RewardPoints:       req.RewardPoints,
		MinTasksToComplete: req.MinTasksToComplete,
		StartAt:            req.StartAt,
		EndAt:              req.EndAt,
	}
	if req.Category != nil {
		category := models.CampaignCategory(*req.Category)
		input.Category = &category
	}
	return input
}

func taskInput(req TaskRequest) services.TaskInput {
	return services.TaskInput{
		Name:         req.Name,
		Description:  req.Description,
		URLAction:    req.URLAction,
		RewardPoints: req.RewardPoints,
		TaskType:     models.TaskType(req.TaskType),
		Config:       req.Config,
		TaskOrder:    req.TaskOrder,
	}
}

func handleCreateCampaign(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" || req.RewardPoints <= 0 {
			respondBadRequest(c, "title and a positive rewardPoints are required")
			return
		}
		campaign, err := campaigns.CreateCampaign(c.Request.Context(), campaignInput(req))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondCreated(c, campaign)
	}
}

func handleUpdateCampaign(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid campaign payload")
			return
		}
		campaign, err := campaigns.UpdateCampaign(c.Request.Context(), c.Param("id"), campaignInput(req))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, campaign)
	}
}

func handleDeleteCampaign(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := campaigns.DeleteCampaign(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"deleted": true})
	}
}

func handleAddTask(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TaskRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.RewardPoints <= 0 {
			respondBadRequest(c, "name and a positive rewardPoints are required")
			return
		}
		task, err := campaigns.AddTask(c.Request.Context(), c.Param("id"), taskInput(req))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondCreated(c, task)
	}
}

func handleUpdateTask(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid task payload")
			return
		}
		task, err := campaigns.UpdateTask(c.Request.Context(), c.Param("id"), taskInput(req))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, task)
	}
}

func handleRemoveTask(campaigns *services.CampaignsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := campaigns.RemoveTask(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, gin.H{"deleted": true})
	}
}

func handleListSubmissions(userTasks *services.UserTasksService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		submissions, err := userTasks.ListSubmitted(c.Request.Context(), queryInt(c, "limit", 50))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, submissions)
	}
}

func handleApproveSubmission(userTasks *services.UserTasksService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userTask, err := userTasks.Approve(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, userTask)
	}
}

func handleRejectSubmission(userTasks *services.UserTasksService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userTask, err := userTasks.Reject(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, userTask)
	}
}

func handleBroadcast(notifications *services.NotificationsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BroadcastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "title and body are required")
			return
		}
		notification, err := notifications.Create(c.Request.Context(), req.UserID, req.Title, req.Body)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondCreated(c, notification)
	}
}

func handleStats(analytics *services.AnalyticsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := analytics.Stats(c.Request.Context())
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, stats)
	}
}
