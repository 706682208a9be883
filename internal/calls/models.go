package calls

import (
	"strings"
	"time"
)

// CallRecord is the persisted state of one call attempt, from trigger to
// terminal status.
//
// Invariants:
// - CallID is locally generated and never changes.
// - ProviderCallID is set at most once, when the voice provider accepts
//   the call.
// - Status only moves forward; see CanTransition.
type CallRecord struct {
	ID     int64  `json:"id,omitempty"`
	CallID string `json:"call_id"`

	DriverName  string `json:"driver_name"`
	PhoneNumber string `json:"phone_number"`
	LoadNumber  string `json:"load_number"`

	DeliveryAddress      string `json:"delivery_address,omitempty"`
	ExpectedDeliveryTime string `json:"expected_delivery_time,omitempty"`
	SpecialInstructions  string `json:"special_instructions,omitempty"`

	Status        CallStatus `json:"status"`
	AgentConfigID int64      `json:"agent_config_id"`

	ProviderCallID    string         `json:"provider_call_id,omitempty"`
	DurationSeconds   *int           `json:"duration_seconds,omitempty"`
	Transcript        string         `json:"transcript"`
	StructuredSummary map[string]any `json:"structured_summary"`

	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CallStatus string

const (
	StatusPending    CallStatus = "pending"
	StatusInProgress CallStatus = "in_progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
	StatusCancelled  CallStatus = "cancelled"
)

// Terminal reports whether no further transitions may leave the status.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders statuses along the forward-only lifecycle.
func (s CallStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	default:
		return 2
	}
}

// CanTransition reports whether moving from one local status to another is
// legal. Same-status moves are allowed (idempotent event redelivery);
// backward moves and moves out of a terminal status are not.
func CanTransition(from, to CallStatus) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	return to.rank() > from.rank()
}

// MapProviderStatus translates a provider status or event code into a local
// status. The mapping is total: unrecognized codes land on in_progress,
// the single visible default branch.
func MapProviderStatus(code string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "queued":
		return StatusPending
	case "ringing", "in_progress", "call_started":
		return StatusInProgress
	case "ended", "call_ended":
		return StatusCompleted
	case "failed":
		return StatusFailed
	default:
		return StatusInProgress
	}
}

// Patch lists every updatable CallRecord field explicitly; nil means
// absent. Partial-update semantics: only set fields are written, so
// event-driven updates never clobber fields the event did not carry.
type Patch struct {
	Status            *CallStatus
	ProviderCallID    *string
	DurationSeconds   *int
	Transcript        *string
	StructuredSummary map[string]any
	EndedAt           *time.Time
}

// Fields renders the set fields as a column/value map for the store.
func (p Patch) Fields() map[string]any {
	m := map[string]any{}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.ProviderCallID != nil {
		m["provider_call_id"] = *p.ProviderCallID
	}
	if p.DurationSeconds != nil {
		m["duration_seconds"] = *p.DurationSeconds
	}
	if p.Transcript != nil {
		m["transcript"] = *p.Transcript
	}
	if p.StructuredSummary != nil {
		m["structured_summary"] = p.StructuredSummary
	}
	if p.EndedAt != nil {
		m["ended_at"] = p.EndedAt.UTC()
	}
	return m
}

func (p Patch) IsEmpty() bool { return len(p.Fields()) == 0 }

// ProviderEvent is the provider-side view of a lifecycle change, either a
// webhook delivery or a live status lookup.
type ProviderEvent struct {
	EventType      string
	CallStatus     string
	ProviderCallID string

	Transcript      string
	DurationSeconds *int
	EndedAt         *time.Time
}

// StatusCode picks the code to map: an explicit call_status wins over the
// event type.
func (e ProviderEvent) StatusCode() string {
	if strings.TrimSpace(e.CallStatus) != "" {
		return e.CallStatus
	}
	return e.EventType
}
