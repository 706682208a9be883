package httpapi

import (
	"errors"
	"net/http"

	"voice-agent-admin/internal/agentconfig"
	"voice-agent-admin/internal/calls"
	"voice-agent-admin/internal/reporting"
	"voice-agent-admin/internal/voice"
	"voice-agent-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps domain sentinels onto HTTP status codes. Upstream
// provider/store failures surface as 500 without leaking response bodies.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, agentconfig.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, agentconfig.ErrInvalidArgument), errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, agentconfig.ErrInUse):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "configuration referenced by call records"})
	case errors.Is(err, calls.ErrAlreadyFinished):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already finished"})
	case errors.Is(err, calls.ErrConfigNotPublished):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent configuration not published"})
	case errors.Is(err, voice.ErrNotConfigured):
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "voice provider not configured"})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
