package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// ReplyRequest is an inbound chat message forwarded by a channel
// integration for approval command parsing.
type ReplyRequest struct {
	ChannelType string `json:"channel_type" binding:"required"`
	ChannelID   string `json:"channel_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
	User        string `json:"user"`
}

// ProcessReply runs an inbound message through approval reply parsing.
// Messages that are not approval commands are acknowledged with
// handled=false so the caller can route them elsewhere.
func (s *Server) ProcessReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from := models.ReplyTarget{ChannelType: req.ChannelType, ChannelID: req.ChannelID}
	response, handled := s.approvals.ProcessReply(c.Request.Context(), req.Text, req.User, from)
	c.JSON(http.StatusOK, gin.H{
		"handled":  handled,
		"response": response,
	})
}
