package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "grimoire-api/internal/transport/http/response"
)

// MaxBodyBytes caps the request body before any handler reads it.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
		if c.Err() != nil && !c.Writer.Written() {
			resp.AbortFail(c, resp.CodePayloadTooLarge, "request body too large")
		}
	}
}
