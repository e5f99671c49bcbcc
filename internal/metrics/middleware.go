package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ttvsnap/ttvsnap/internal/logging"
)

// unmatchedRoute labels requests that hit no registered route, so scanners
// cannot grow the endpoint label set.
const unmatchedRoute = "unmatched"

// Middleware records status server request counts and latency.
func Middleware(m *Metrics, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncHTTPRequestsInFlight()
		defer m.DecHTTPRequestsInFlight()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = unmatchedRoute
		}
		status := strconv.Itoa(c.Writer.Status())

		m.RecordRequestLatency(endpoint, c.Request.Method, status, time.Since(start).Seconds())
		m.RecordHTTPRequest(endpoint, c.Request.Method, status)

		if len(c.Errors) > 0 {
			logger.WarnWithContext(c.Request.Context(), "status server handler error",
				"endpoint", endpoint,
				"status", status,
				"error", c.Errors.String(),
			)
		}
	}
}
