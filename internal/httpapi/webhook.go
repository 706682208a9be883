package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"voice-agent-admin/internal/calls"
	"voice-agent-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

// webhookPayload is the provider's flat event shape. Unknown event types
// still bind; the reconciler decides what to do with them.
type webhookPayload struct {
	EventType       string     `json:"event_type"`
	CallID          string     `json:"call_id"`
	CallStatus      string     `json:"call_status"`
	Transcript      string     `json:"transcript"`
	DurationSeconds *int       `json:"duration_seconds"`
	EndTime         *time.Time `json:"end_time"`
}

// VoiceWebhook ingests provider lifecycle events. The provider retries on
// non-2xx, so every recognizable payload is acknowledged with 200 even
// when it references an unknown call; only malformed JSON gets a 400.
func (h Handlers) VoiceWebhook(c *gin.Context) {
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if h.Deduper != nil {
		seen, err := h.Deduper.Seen(ctx, webhookFingerprint(payload))
		if err != nil {
			// Dedup is an optimization; reconciliation is idempotent
			// anyway, so a redis failure never blocks ingestion.
			logger.From(ctx).Warn("webhook dedup unavailable", "err", err)
		} else if seen {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate", "event_type": payload.EventType})
			return
		}
	}

	err := h.Calls.ApplyProviderEvent(ctx, calls.ProviderEvent{
		EventType:       payload.EventType,
		CallStatus:      payload.CallStatus,
		ProviderCallID:  payload.CallID,
		Transcript:      payload.Transcript,
		DurationSeconds: payload.DurationSeconds,
		EndedAt:         payload.EndTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"event_type": payload.EventType,
		"call_id":    payload.CallID,
	})
}

// webhookFingerprint identifies one delivery attempt's content. The
// provider does not send a delivery id, so the fingerprint hashes the
// fields that distinguish events.
func webhookFingerprint(p webhookPayload) string {
	dur := -1
	if p.DurationSeconds != nil {
		dur = *p.DurationSeconds
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%d",
		p.EventType, p.CallID, p.CallStatus, dur, len(p.Transcript))))
	return hex.EncodeToString(sum[:])
}
