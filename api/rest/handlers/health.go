package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/idlesync/interfaces"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns the current status of all accounts
func Status(watcher interfaces.WatcherService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, watcher.Status())
	}
}
