package middleware

import (
	"net/http"

	"crm-messaging/internal/services"
	"crm-messaging/internal/transport/httpdto"
	"crm-messaging/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error when the handler wrote nothing itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if l != nil && status >= 500 {
			l.WithContext(c.Request.Context()).Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(msg, services.ErrorCode(err)).WithRequestID(logger.RequestID(c.Request.Context())))
	}
}
