package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/medik/pkg/ingress"
)

// AlertmanagerWebhook accepts an Alertmanager webhook delivery. The raw
// body is authenticated before parsing so the signature covers the exact
// bytes on the wire.
func (s *Server) AlertmanagerWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	signature := c.GetHeader(s.processor.SignatureHeader())
	timestamp := c.GetHeader(s.processor.TimestampHeader())
	if err := s.processor.Authenticate(body, signature, timestamp); err != nil {
		switch {
		case errors.Is(err, ingress.ErrBadSignature):
			c.JSON(http.StatusForbidden, gin.H{"error": "signature verification failed"})
		case errors.Is(err, ingress.ErrBadTimestamp), errors.Is(err, ingress.ErrReplayWindow):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusForbidden, gin.H{"error": "request rejected"})
		}
		return
	}

	var payload ingress.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	processed := s.processor.Process(c.Request.Context(), payload)
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
