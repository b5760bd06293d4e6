package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"grimoire-api/internal/core/auth"
	resp "grimoire-api/internal/transport/http/response"
)

const KeyUserID = "userId"

// AuthJWT verifies the "Bearer <token>" authorization header and attaches the
// authenticated user id to the request context for downstream handlers.
func AuthJWT(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			resp.AbortFail(c, resp.CodeUnauthorized, "missing token")
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			resp.AbortFail(c, resp.CodeUnauthorized, "invalid token")
			return
		}
		c.Set(KeyUserID, claims.UID)
		c.Set("claims", claims)
		c.Next()
	}
}
