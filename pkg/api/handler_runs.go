package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRun returns the current state of a playbook run.
func (s *Server) GetRun(c *gin.Context) {
	id := c.Param("id")
	run, ok := s.executor.Run(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run with id " + id})
		return
	}
	c.JSON(http.StatusOK, run)
}
