package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "HEALTHY",
		"current_time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
