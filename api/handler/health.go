package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/propscrape/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Runs are serialised, so status is "busy" while one is in flight or
// waiting for the browser.
func Health(run Runner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := run.Stats()

		status := "healthy"
		if stats.Active > 0 || stats.Queued > 0 {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Runs:    stats,
			Version: Version,
		})
	}
}
