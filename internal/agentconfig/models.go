package agentconfig

import (
	"sort"
	"time"
)

// ConversationStep is one scripted turn of an agent's conversation flow.
// Order is 1-based; values need not be contiguous or unique. Consumers
// must render via SortedFlow rather than assuming stored order.
type ConversationStep struct {
	Step     string `json:"step"`
	Prompt   string `json:"prompt"`
	Required bool   `json:"required"`
	Order    int    `json:"order"`
}

// AgentConfiguration is a stored, named conversation script used to drive
// voice calls.
//
// Invariant: at most one configuration is active at a time; the activate
// operation owns this (see Service.Activate).
type AgentConfiguration struct {
	ID                   int64              `json:"id,omitempty"`
	AgentName            string             `json:"agent_name"`
	Greeting             string             `json:"greeting"`
	PrimaryObjective     string             `json:"primary_objective"`
	ConversationFlow     []ConversationStep `json:"conversation_flow"`
	FallbackResponses    []string           `json:"fallback_responses"`
	CallEndingConditions []string           `json:"call_ending_conditions"`
	IsActive             bool               `json:"is_active"`

	// ExternalAgentID is assigned by the voice provider once published
	// there; empty until then.
	ExternalAgentID string `json:"external_agent_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortedFlow returns the conversation steps ordered by Order ascending.
// The stored slice is left untouched.
func (c AgentConfiguration) SortedFlow() []ConversationStep {
	out := append([]ConversationStep(nil), c.ConversationFlow...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Patch lists every updatable field explicitly. A nil field is absent and
// never written; a non-nil field is written even when it points at a zero
// value. This keeps "field present but empty" and "field absent" distinct.
type Patch struct {
	AgentName            *string             `json:"agent_name,omitempty"`
	Greeting             *string             `json:"greeting,omitempty"`
	PrimaryObjective     *string             `json:"primary_objective,omitempty"`
	ConversationFlow     *[]ConversationStep `json:"conversation_flow,omitempty"`
	FallbackResponses    *[]string           `json:"fallback_responses,omitempty"`
	CallEndingConditions *[]string           `json:"call_ending_conditions,omitempty"`
	IsActive             *bool               `json:"is_active,omitempty"`
	ExternalAgentID      *string             `json:"external_agent_id,omitempty"`
}

// Fields renders the set fields as a column/value map for the store.
func (p Patch) Fields() map[string]any {
	m := map[string]any{}
	if p.AgentName != nil {
		m["agent_name"] = *p.AgentName
	}
	if p.Greeting != nil {
		m["greeting"] = *p.Greeting
	}
	if p.PrimaryObjective != nil {
		m["primary_objective"] = *p.PrimaryObjective
	}
	if p.ConversationFlow != nil {
		m["conversation_flow"] = *p.ConversationFlow
	}
	if p.FallbackResponses != nil {
		m["fallback_responses"] = *p.FallbackResponses
	}
	if p.CallEndingConditions != nil {
		m["call_ending_conditions"] = *p.CallEndingConditions
	}
	if p.IsActive != nil {
		m["is_active"] = *p.IsActive
	}
	if p.ExternalAgentID != nil {
		m["external_agent_id"] = *p.ExternalAgentID
	}
	return m
}

func (p Patch) IsEmpty() bool { return len(p.Fields()) == 0 }
