package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListApprovals returns the currently pending, unexpired approvals.
func (s *Server) ListApprovals(c *gin.Context) {
	pending, err := s.approvals.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list approvals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": pending})
}
