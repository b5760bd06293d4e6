package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "grimoire-api/internal/transport/http/response"
)

// ConcurrencyLimit caps requests in flight to protect the database and the
// image pipeline downstream.
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if err := sem.Acquire(c, 1); err != nil {
			resp.AbortFail(c, resp.CodeServerError, "server busy")
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
