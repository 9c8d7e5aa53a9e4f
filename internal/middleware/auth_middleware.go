package middleware

import (
	"context"
	"net/http"
	"strings"

	"crm-messaging/internal/services"
	"crm-messaging/internal/transport/httpdto"
	"crm-messaging/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthMiddleware accepts a bearer token, or the access_token query parameter for EventSource
// and websocket clients that cannot set headers.
func AuthMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			token = c.Query("access_token")
		}
		claims, err := service.ParseAccessToken(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", httpdto.CodeUnauthorized)
			return
		}

		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", httpdto.CodeUnauthorized)
			return
		}
		userID, _ := uuid.Parse(claims.UserID)

		sessionID := strings.TrimSpace(c.GetHeader("X-Session-Id"))
		if sessionID == "" {
			sessionID = claims.SessionID
		}

		ctx := services.WithPrincipalContext(c.Request.Context(), orgID, userID, sessionID)
		ctx = context.WithValue(ctx, logger.OrgIdKey, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CronSecretMiddleware guards scheduler endpoints with the shared secret in X-Cron-Secret.
func CronSecretMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.VerifyCronSecret(c.GetHeader("X-Cron-Secret")); err != nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", httpdto.CodeUnauthorized)
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
