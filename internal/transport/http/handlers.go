package http

import (
	"net/http"

	"github.com/flathead/streamhub/internal/app/orch"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/gin-gonic/gin"
)

// RegisterAPI attaches the read-only REST surface: aggregate stats
// and the robot roster.
func RegisterAPI(g *gin.RouterGroup, o *orch.Orchestrator) {
	g.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Stats.Snapshot())
	})

	g.GET("/robots", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"robots": o.Roster()})
	})

	g.GET("/robots/:robotId", func(c *gin.Context) {
		st, err := o.Status(domain.RobotID(c.Param("robotId")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "robot not found"})
			return
		}
		c.JSON(http.StatusOK, st)
	})
}
