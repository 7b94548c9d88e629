package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skychatorg/skyplayer/internal/store"
)

// HealthResponse reports service and database status
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// SetupHealthRoutes registers the health endpoint
func SetupHealthRoutes(group *gin.RouterGroup, db *store.DB) {
	group.GET("/health", func(c *gin.Context) {
		resp := HealthResponse{Status: "ok", Database: "ok"}
		status := http.StatusOK
		if db != nil {
			if err := db.Health(c.Request.Context()); err != nil {
				resp.Status = "degraded"
				resp.Database = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, resp)
	})
}
