package agentconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"voice-agent-admin/internal/voice"
)

var (
	ErrNotFound        = errors.New("agentconfig: configuration not found")
	ErrInvalidArgument = errors.New("agentconfig: invalid argument")

	// ErrInUse blocks deletion of a configuration still referenced by
	// call records.
	ErrInUse = errors.New("agentconfig: configuration referenced by call records")
)

// Store is the persistence contract for agent configurations.
// Implementations return ErrNotFound when a filter matches nothing.
type Store interface {
	Insert(ctx context.Context, cfg AgentConfiguration) (AgentConfiguration, error)
	GetByID(ctx context.Context, id int64) (AgentConfiguration, error)
	List(ctx context.Context) ([]AgentConfiguration, error)
	GetActive(ctx context.Context) (AgentConfiguration, error)
	UpdateByID(ctx context.Context, id int64, patch Patch) (AgentConfiguration, error)
	DeleteByID(ctx context.Context, id int64) error
	DeactivateOthers(ctx context.Context, id int64) error
}

// AgentPublisher pushes a configuration to the voice provider.
type AgentPublisher interface {
	CreateAgent(ctx context.Context, req voice.CreateAgentRequest) (voice.Agent, error)
}

// CallRefChecker reports whether any call record references a configuration.
type CallRefChecker interface {
	HasCallsForConfig(ctx context.Context, configID int64) (bool, error)
}

// Service owns agent configuration lifecycle.
//
// Active-flag invariant: at most one configuration is active. The row-store
// REST interface cannot express a cross-row transaction, so Activate is
// serialized behind activateMu and performed as deactivate-others then
// activate-target; either serialized order leaves exactly one active row.
type Service struct {
	store     Store
	publisher AgentPublisher
	callRefs  CallRefChecker

	activateMu sync.Mutex
}

func NewService(store Store, publisher AgentPublisher, callRefs CallRefChecker) *Service {
	return &Service{store: store, publisher: publisher, callRefs: callRefs}
}

func (s *Service) Create(ctx context.Context, cfg AgentConfiguration) (AgentConfiguration, error) {
	if err := validateConfig(cfg); err != nil {
		return AgentConfiguration{}, err
	}
	cfg.ExternalAgentID = "" // provider-assigned, never accepted from input
	return s.store.Insert(ctx, cfg)
}

func (s *Service) Get(ctx context.Context, id int64) (AgentConfiguration, error) {
	if id <= 0 {
		return AgentConfiguration{}, ErrInvalidArgument
	}
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]AgentConfiguration, error) {
	return s.store.List(ctx)
}

// GetActive returns the currently active configuration, ErrNotFound when
// none is active.
func (s *Service) GetActive(ctx context.Context) (AgentConfiguration, error) {
	return s.store.GetActive(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) (AgentConfiguration, error) {
	if id <= 0 {
		return AgentConfiguration{}, ErrInvalidArgument
	}
	if patch.IsEmpty() {
		return AgentConfiguration{}, fmt.Errorf("%w: empty patch", ErrInvalidArgument)
	}
	// The external agent id is owned by Publish.
	patch.ExternalAgentID = nil
	return s.store.UpdateByID(ctx, id, patch)
}

// Delete removes a configuration unless call records still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidArgument
	}
	if s.callRefs != nil {
		inUse, err := s.callRefs.HasCallsForConfig(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return ErrInUse
		}
	}
	return s.store.DeleteByID(ctx, id)
}

// Activate makes the given configuration the single active one.
func (s *Service) Activate(ctx context.Context, id int64) (AgentConfiguration, error) {
	if id <= 0 {
		return AgentConfiguration{}, ErrInvalidArgument
	}

	s.activateMu.Lock()
	defer s.activateMu.Unlock()

	if _, err := s.store.GetByID(ctx, id); err != nil {
		return AgentConfiguration{}, err
	}
	if err := s.store.DeactivateOthers(ctx, id); err != nil {
		return AgentConfiguration{}, err
	}
	active := true
	return s.store.UpdateByID(ctx, id, Patch{IsActive: &active})
}

// Publish pushes the configuration to the voice provider and stores the
// assigned external agent id. Idempotent: an already-published
// configuration is returned unchanged without a provider call.
func (s *Service) Publish(ctx context.Context, id int64) (AgentConfiguration, error) {
	if id <= 0 {
		return AgentConfiguration{}, ErrInvalidArgument
	}
	cfg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return AgentConfiguration{}, err
	}
	if cfg.ExternalAgentID != "" {
		return cfg, nil
	}
	if s.publisher == nil {
		return AgentConfiguration{}, voice.ErrNotConfigured
	}

	agent, err := s.publisher.CreateAgent(ctx, voice.CreateAgentRequest{
		AgentName: cfg.AgentName,
		Prompt:    RenderPrompt(cfg),
	})
	if err != nil {
		return AgentConfiguration{}, err
	}

	return s.store.UpdateByID(ctx, id, Patch{ExternalAgentID: &agent.AgentID})
}

// ExternalAgentID resolves the provider-side agent id for a configuration;
// empty when the configuration has not been published.
func (s *Service) ExternalAgentID(ctx context.Context, id int64) (string, error) {
	cfg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return cfg.ExternalAgentID, nil
}

// RenderPrompt flattens a configuration into the single prompt string the
// provider consumes: greeting, objective, then the flow sorted by order,
// then fallbacks and ending conditions.
func RenderPrompt(cfg AgentConfiguration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Greeting: %s\n", cfg.Greeting)
	fmt.Fprintf(&b, "Primary objective: %s\n", cfg.PrimaryObjective)
	for _, step := range cfg.SortedFlow() {
		must := "optional"
		if step.Required {
			must = "required"
		}
		fmt.Fprintf(&b, "Step %d (%s, %s): %s\n", step.Order, step.Step, must, step.Prompt)
	}
	for _, f := range cfg.FallbackResponses {
		fmt.Fprintf(&b, "Fallback: %s\n", f)
	}
	for _, cond := range cfg.CallEndingConditions {
		fmt.Fprintf(&b, "End the call when: %s\n", cond)
	}
	return b.String()
}

func validateConfig(cfg AgentConfiguration) error {
	switch {
	case cfg.AgentName == "":
		return fmt.Errorf("%w: agent_name required", ErrInvalidArgument)
	case cfg.Greeting == "":
		return fmt.Errorf("%w: greeting required", ErrInvalidArgument)
	case cfg.PrimaryObjective == "":
		return fmt.Errorf("%w: primary_objective required", ErrInvalidArgument)
	case len(cfg.ConversationFlow) == 0:
		return fmt.Errorf("%w: conversation_flow requires at least one step", ErrInvalidArgument)
	}
	for _, step := range cfg.ConversationFlow {
		if step.Step == "" || step.Prompt == "" {
			return fmt.Errorf("%w: conversation step requires step and prompt", ErrInvalidArgument)
		}
		if step.Order < 1 {
			return fmt.Errorf("%w: conversation step order must be >= 1", ErrInvalidArgument)
		}
	}
	return nil
}
