package calls

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"voice-agent-admin/internal/transcript"
	"voice-agent-admin/internal/voice"
	"voice-agent-admin/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("calls: call record not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")

	// ErrAlreadyFinished blocks ending a call whose local status is
	// terminal.
	ErrAlreadyFinished = errors.New("calls: call already finished")

	// ErrConfigNotPublished blocks triggering against a configuration
	// that has no provider-side agent yet.
	ErrConfigNotPublished = errors.New("calls: agent configuration not published to voice provider")
)

// CallStore is the persistence contract for call records.
// Implementations return ErrNotFound when a filter matches nothing.
type CallStore interface {
	Insert(ctx context.Context, rec CallRecord) (CallRecord, error)
	GetByCallID(ctx context.Context, callID string) (CallRecord, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (CallRecord, error)
	List(ctx context.Context, limit int) ([]CallRecord, error)
	ListByConfig(ctx context.Context, configID int64, limit int) ([]CallRecord, error)
	UpdateByCallID(ctx context.Context, callID string, patch Patch) (CallRecord, error)
	DeleteByCallID(ctx context.Context, callID string) error
}

// Dialer is the voice-provider contract the reconciler needs.
type Dialer interface {
	CreatePhoneCall(ctx context.Context, req voice.PhoneCallRequest) (voice.Call, error)
	GetCall(ctx context.Context, providerCallID string) (voice.Call, error)
	EndCall(ctx context.Context, providerCallID string) error
}

// ConfigSource resolves the provider-side agent id for a configuration.
type ConfigSource interface {
	ExternalAgentID(ctx context.Context, configID int64) (string, error)
}

// TriggerRequest is an operator's request to place an outbound call.
type TriggerRequest struct {
	DriverName    string
	PhoneNumber   string
	LoadNumber    string
	AgentConfigID int64

	DeliveryAddress      string
	ExpectedDeliveryTime string
	SpecialInstructions  string
}

// StatusView merges the local status with a best-effort live provider
// lookup.
type StatusView struct {
	CallID         string      `json:"call_id"`
	LocalStatus    CallStatus  `json:"local_status"`
	ProviderStatus *voice.Call `json:"provider_status,omitempty"`
	DriverName     string      `json:"driver_name"`
	LoadNumber     string      `json:"load_number"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Service is the call lifecycle reconciler: it owns local call ids, the
// provider-status mapping, and all partial updates to call records.
//
// clock and newCallID are injectable for deterministic tests.
type Service struct {
	store   CallStore
	dialer  Dialer
	configs ConfigSource

	clock     func() time.Time
	newCallID func() string
}

func NewService(store CallStore, dialer Dialer, configs ConfigSource) *Service {
	return &Service{
		store:     store,
		dialer:    dialer,
		configs:   configs,
		clock:     time.Now,
		newCallID: newCallID,
	}
}

// newCallID generates the canonical local call identifier: call_<8 hex>.
func newCallID() string {
	u := uuid.New()
	return "call_" + hex.EncodeToString(u[:4])
}

// CreateFromTrigger persists a fresh pending call record and returns it.
// The caller owns the follow-up provider dial; see Trigger.
func (s *Service) CreateFromTrigger(ctx context.Context, req TriggerRequest) (CallRecord, error) {
	if err := validateTrigger(req); err != nil {
		return CallRecord{}, err
	}
	rec := CallRecord{
		CallID:               s.newCallID(),
		DriverName:           req.DriverName,
		PhoneNumber:          req.PhoneNumber,
		LoadNumber:           req.LoadNumber,
		DeliveryAddress:      req.DeliveryAddress,
		ExpectedDeliveryTime: req.ExpectedDeliveryTime,
		SpecialInstructions:  req.SpecialInstructions,
		Status:               StatusPending,
		AgentConfigID:        req.AgentConfigID,
		Transcript:           "",
		StructuredSummary:    map[string]any{},
	}
	return s.store.Insert(ctx, rec)
}

// Trigger creates the local record, asks the provider to place the call,
// and reconciles the outcome: provider acceptance stores the external call
// id (set exactly once) and moves the record to in_progress; provider
// failure leaves the record in terminal failed with no rollback.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) (CallRecord, error) {
	rec, err := s.CreateFromTrigger(ctx, req)
	if err != nil {
		return CallRecord{}, err
	}

	agentID, err := s.configs.ExternalAgentID(ctx, req.AgentConfigID)
	if err != nil {
		return s.failCall(ctx, rec, err)
	}
	if agentID == "" {
		return s.failCall(ctx, rec, ErrConfigNotPublished)
	}

	call, err := s.dialer.CreatePhoneCall(ctx, voice.PhoneCallRequest{
		AgentID:     agentID,
		PhoneNumber: req.PhoneNumber,
		Metadata: map[string]string{
			"call_id":     rec.CallID,
			"driver_name": req.DriverName,
			"load_number": req.LoadNumber,
		},
	})
	if err != nil {
		return s.failCall(ctx, rec, err)
	}

	status := StatusInProgress
	return s.store.UpdateByCallID(ctx, rec.CallID, Patch{
		Status:         &status,
		ProviderCallID: &call.CallID,
	})
}

// failCall moves a just-created record to terminal failed and returns the
// original cause. The record is kept for the operator; no rollback.
func (s *Service) failCall(ctx context.Context, rec CallRecord, cause error) (CallRecord, error) {
	status := StatusFailed
	if _, uerr := s.store.UpdateByCallID(ctx, rec.CallID, Patch{Status: &status}); uerr != nil {
		logger.From(ctx).Error("failed to mark call failed", "call_id", rec.CallID, "err", uerr)
	}
	return CallRecord{}, fmt.Errorf("trigger %s: %w", rec.CallID, cause)
}

// ApplyProviderEvent reconciles one provider event onto the matching call
// record. Events for unknown calls are logged and dropped. Application is
// idempotent: redelivering an event produces the same final record state.
func (s *Service) ApplyProviderEvent(ctx context.Context, ev ProviderEvent) error {
	log := logger.From(ctx)
	if ev.ProviderCallID == "" {
		log.Warn("provider event without call id dropped", "event_type", ev.EventType)
		return nil
	}

	rec, err := s.store.GetByProviderCallID(ctx, ev.ProviderCallID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("provider event for unknown call dropped",
			"provider_call_id", ev.ProviderCallID, "event_type", ev.EventType)
		return nil
	}
	if err != nil {
		return err
	}

	patch := Patch{}

	mapped := MapProviderStatus(ev.StatusCode())
	switch {
	case mapped == rec.Status:
		// No status change; field updates may still apply.
	case CanTransition(rec.Status, mapped):
		patch.Status = &mapped
	default:
		log.Warn("out-of-order provider status ignored",
			"call_id", rec.CallID,
			"local_status", rec.Status,
			"provider_status", ev.StatusCode(),
			"mapped_status", mapped)
	}

	if ev.DurationSeconds != nil {
		patch.DurationSeconds = ev.DurationSeconds
	}
	if ev.EndedAt != nil {
		patch.EndedAt = ev.EndedAt
	}
	if ev.Transcript != "" {
		patch.Transcript = &ev.Transcript
		// Summary is recomputed wholesale from the full transcript,
		// never appended, so reprocessing cannot grow lists.
		patch.StructuredSummary = transcript.Extract(ev.Transcript).AsMap()
	}

	if patch.IsEmpty() {
		return nil
	}
	_, err = s.store.UpdateByCallID(ctx, rec.CallID, patch)
	return err
}

// EndCall terminates the remote call and moves the local record to
// cancelled. ErrNotFound when the local record does not exist; nothing is
// written in that case.
func (s *Service) EndCall(ctx context.Context, callID string) (CallRecord, error) {
	rec, err := s.store.GetByCallID(ctx, callID)
	if err != nil {
		return CallRecord{}, err
	}
	if rec.Status.Terminal() {
		return CallRecord{}, ErrAlreadyFinished
	}

	if rec.ProviderCallID != "" {
		if err := s.dialer.EndCall(ctx, rec.ProviderCallID); err != nil && !errors.Is(err, voice.ErrCallNotFound) {
			return CallRecord{}, err
		}
	}

	status := StatusCancelled
	now := s.clock().UTC()
	return s.store.UpdateByCallID(ctx, callID, Patch{Status: &status, EndedAt: &now})
}

// GetStatus returns the local status plus a best-effort live provider
// lookup; a provider failure degrades to the local view alone.
func (s *Service) GetStatus(ctx context.Context, callID string) (StatusView, error) {
	rec, err := s.store.GetByCallID(ctx, callID)
	if err != nil {
		return StatusView{}, err
	}

	view := StatusView{
		CallID:      rec.CallID,
		LocalStatus: rec.Status,
		DriverName:  rec.DriverName,
		LoadNumber:  rec.LoadNumber,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.ProviderCallID != "" {
		if live, err := s.dialer.GetCall(ctx, rec.ProviderCallID); err == nil {
			view.ProviderStatus = &live
		} else {
			logger.From(ctx).Warn("live provider status unavailable",
				"call_id", rec.CallID, "err", err)
		}
	}
	return view, nil
}

func (s *Service) Get(ctx context.Context, callID string) (CallRecord, error) {
	if callID == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return s.store.GetByCallID(ctx, callID)
}

const defaultListLimit = 100

func (s *Service) List(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.List(ctx, limit)
}

func (s *Service) ListByConfig(ctx context.Context, configID int64, limit int) ([]CallRecord, error) {
	if configID <= 0 {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.ListByConfig(ctx, configID, limit)
}

func (s *Service) Delete(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	return s.store.DeleteByCallID(ctx, callID)
}

func validateTrigger(req TriggerRequest) error {
	switch {
	case req.DriverName == "":
		return fmt.Errorf("%w: driver_name required", ErrInvalidArgument)
	case len(req.PhoneNumber) < 10 || len(req.PhoneNumber) > 15:
		return fmt.Errorf("%w: phone_number must be 10-15 characters", ErrInvalidArgument)
	case req.LoadNumber == "":
		return fmt.Errorf("%w: load_number required", ErrInvalidArgument)
	case req.AgentConfigID <= 0:
		return fmt.Errorf("%w: agent_config_id must be positive", ErrInvalidArgument)
	}
	return nil
}
