package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tasmil/server/internal/models"
	"tasmil/server/internal/services"
	"tasmil/shared/logger"
	"tasmil/shared/ratelimit"
)

const (
	ctxUserID = "userID"
	ctxRole   = "userRole"
)

// AuthRequired rejects requests without a valid bearer token and stores
// the caller's identity on the context.
func AuthRequired(auth *services.AuthService, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_LOGIN", "message": "Missing bearer token"},
			})
			return
		}
		claims, err := auth.VerifyAccessToken(token)
		if err != nil {
			respondError(c, appLogger, err)
			c.Abort()
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// AuthOptional resolves identity when a token is present but lets
// anonymous requests through. Endpoints use it to annotate public reads.
func AuthOptional(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := auth.VerifyAccessToken(token); err == nil {
				c.Set(ctxUserID, claims.UserID)
				c.Set(ctxRole, claims.Role)
			}
		}
		c.Next()
	}
}

// AdminRequired assumes AuthRequired already ran.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != string(models.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "Admin access required"},
			})
			return
		}
		c.Next()
	}
}

// RateLimit throttles by client IP, for the unauthenticated auth endpoints.
func RateLimit(limiter *ratelimit.KeyedLimiter, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := limiter.Consume(c.ClientIP(), 1); err != nil {
			respondError(c, appLogger, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Browser clients carry the token in the httpOnly cookie instead.
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
