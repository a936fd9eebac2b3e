package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SharedKeyMiddleware requires the query parameter param to equal secret.
// An empty secret rejects every request.
func SharedKeyMiddleware(param, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query(param)
		if secret == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
			c.String(http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
