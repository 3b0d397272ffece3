package middleware

import (
	"github.com/gin-gonic/gin"

	"decentra/internal/obs"
)

// Metrics records request counts and latency labelled by route template.
func Metrics(m *obs.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.StartRequest()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		done(c.Request.Method, path, c.Writer.Status())
	}
}
