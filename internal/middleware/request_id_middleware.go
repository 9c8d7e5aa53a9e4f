package middleware

import (
	"context"

	"crm-messaging/internal/transport/httpdto"
	"crm-messaging/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

// maxRequestIDLen bounds ids echoed from callers; the record CRUD layer forwards its own.
const maxRequestIDLen = 64

// RequestIDMiddleware keeps a caller supplied X-Request-Id when it is a safe token and mints
// one otherwise. The id reaches log lines through the request context and error envelopes
// through abortWithError.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIdKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// validRequestID accepts short ids of letters, digits, '-', '_' and '.', so a header value
// cannot smuggle separators into log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// abortWithError writes the error envelope tagged with the request id and stops the chain.
func abortWithError(c *gin.Context, status int, msg string, code httpdto.ErrorCode) {
	c.AbortWithStatusJSON(status, httpdto.NewErrorResponse(msg, code).WithRequestID(logger.RequestID(c.Request.Context())))
}
