package api

import (
	"net/http"

	"chat-relay/observability"

	"github.com/gin-gonic/gin"
)

// RegisterDebug exposes the stats snapshot. Mounted outside the
// authenticated group; intended for operators, not clients.
func RegisterDebug(r *gin.Engine, monitor *observability.Monitor) {
	r.GET("/debug/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, monitor.Snapshot())
	})
}
