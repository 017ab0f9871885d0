package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// respondError maps business errors onto their declared status and code.
// Anything else is logged and flattened to a generic 500 so internals
// never leak to clients.
func respondError(c *gin.Context, appLogger *logger.Logger, err error) {
	if appErr := apperr.As(err); appErr != nil {
		c.JSON(appErr.Status, gin.H{
			"success": false,
			"error":   gin.H{"code": appErr.Code, "message": appErr.Message},
		})
		return
	}
	appLogger.Error("Unhandled error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Something went wrong"},
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"code": "INVALID_REQUEST", "message": message},
	})
}
