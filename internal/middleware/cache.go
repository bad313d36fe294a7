package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids any intermediary or browser caching. Session state,
// timers and proctoring status are live data; a cached response would
// show a learner a stale countdown or a stale submission status.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
