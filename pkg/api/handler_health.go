package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports liveness plus backing-service status.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "disabled"
	if s.db != nil {
		database = "healthy"
		if err := s.db.Ping(ctx); err != nil {
			database = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	body := gin.H{
		"status":   "healthy",
		"database": database,
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	c.JSON(status, body)
}

// RecentEvents returns the most recent persisted cluster events.
func (s *Server) RecentEvents(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"events": []any{}, "store": "disabled"})
		return
	}
	limit := 50
	events, err := s.db.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
