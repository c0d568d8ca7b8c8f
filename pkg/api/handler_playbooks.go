package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPlaybooks returns summaries of all registered playbooks.
func (s *Server) ListPlaybooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"playbooks": s.registry.List()})
}
