package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// ListRules returns all registered rules in registration order.
func (s *Server) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.engine.List()})
}

// AddRule registers a rule, replacing any existing rule with the same id.
func (s *Server) AddRule(c *gin.Context) {
	var rule models.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := s.registry.Get(rule.PlaybookID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown playbook_id " + rule.PlaybookID})
		return
	}
	if err := s.engine.Add(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// RemoveRule unregisters a rule by id.
func (s *Server) RemoveRule(c *gin.Context) {
	id := c.Param("id")
	if !s.engine.Remove(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no rule with id " + id})
		return
	}
	c.Status(http.StatusNoContent)
}
