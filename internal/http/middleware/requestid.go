package middleware

import (
	"github.com/arosnov/schedhook/internal/requestid"
	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns a request ID (reusing one the caller supplied)
// and attaches it to both the response header and the request
// context, so downstream logging picks it up via log.ContextHandler.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = requestid.New()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
