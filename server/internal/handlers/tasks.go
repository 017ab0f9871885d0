package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"tasmil/server/internal/services"
	"tasmil/shared/logger"
)

type SubmitProofRequest struct {
	ProofData string `json:"proofData" binding:"required"`
}

func handleSubmitProof(userTasks *services.UserTasksService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitProofRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "proofData is required")
			return
		}
		userTask, err := userTasks.SubmitProof(c.Request.Context(), currentUserID(c), c.Param("id"), req.ProofData)
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondCreated(c, userTask)
	}
}

func handleVerifyTask(verification *services.VerificationService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userTask, err := verification.VerifyTask(c.Request.Context(), currentUserID(c), c.Param("id"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		respondOK(c, userTask)
	}
}

func handleClaimTask(claims *services.ClaimsService, notifications *services.NotificationsService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		claim, err := claims.ClaimTask(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		notifications.NotifyClaim(c.Request.Context(), userID,
			"Task reward claimed",
			"You earned "+strconv.Itoa(claim.PointsEarned)+" points")
		respondOK(c, claim)
	}
}

func handleTaskStatus(userTasks *services.UserTasksService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userTask, err := userTasks.GetStatus(c.Request.Context(), currentUserID(c), c.Param("id"))
		if err != nil {
			respondError(c, appLogger, err)
			return
		}
		status := services.PublicStatus(userTask)
		payload := gin.H{"status": status}
		if userTask != nil {
			payload["userTask"] = userTask
		}
		respondOK(c, payload)
	}
}
