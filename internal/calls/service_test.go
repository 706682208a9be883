package calls

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"voice-agent-admin/internal/voice"
)

// fakeStore is an in-memory CallStore that records every write.
type fakeStore struct {
	records map[string]CallRecord
	writes  int

	failInsert bool
	failUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]CallRecord{}}
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) Insert(_ context.Context, rec CallRecord) (CallRecord, error) {
	if f.failInsert {
		return CallRecord{}, errStoreDown
	}
	f.writes++
	rec.ID = int64(len(f.records) + 1)
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	f.records[rec.CallID] = rec
	return rec, nil
}

func (f *fakeStore) GetByCallID(_ context.Context, callID string) (CallRecord, error) {
	rec, ok := f.records[callID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) GetByProviderCallID(_ context.Context, providerCallID string) (CallRecord, error) {
	for _, rec := range f.records {
		if rec.ProviderCallID == providerCallID {
			return rec, nil
		}
	}
	return CallRecord{}, ErrNotFound
}

func (f *fakeStore) List(_ context.Context, limit int) ([]CallRecord, error) {
	out := make([]CallRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListByConfig(_ context.Context, configID int64, limit int) ([]CallRecord, error) {
	var out []CallRecord
	for _, rec := range f.records {
		if rec.AgentConfigID == configID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateByCallID(_ context.Context, callID string, patch Patch) (CallRecord, error) {
	if f.failUpdate {
		return CallRecord{}, errStoreDown
	}
	rec, ok := f.records[callID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	f.writes++
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.ProviderCallID != nil {
		rec.ProviderCallID = *patch.ProviderCallID
	}
	if patch.DurationSeconds != nil {
		rec.DurationSeconds = patch.DurationSeconds
	}
	if patch.Transcript != nil {
		rec.Transcript = *patch.Transcript
	}
	if patch.StructuredSummary != nil {
		rec.StructuredSummary = patch.StructuredSummary
	}
	if patch.EndedAt != nil {
		rec.EndedAt = patch.EndedAt
	}
	rec.UpdatedAt = time.Now().UTC()
	f.records[callID] = rec
	return rec, nil
}

func (f *fakeStore) DeleteByCallID(_ context.Context, callID string) error {
	if _, ok := f.records[callID]; !ok {
		return ErrNotFound
	}
	f.writes++
	delete(f.records, callID)
	return nil
}

// fakeDialer is a scripted voice provider.
type fakeDialer struct {
	createErr error
	endErr    error
	getErr    error
	liveCall  voice.Call

	createCalls int
	endCalls    int
}

func (f *fakeDialer) CreatePhoneCall(_ context.Context, req voice.PhoneCallRequest) (voice.Call, error) {
	f.createCalls++
	if f.createErr != nil {
		return voice.Call{}, f.createErr
	}
	return voice.Call{CallID: "prov_1", AgentID: req.AgentID, CallStatus: "registered"}, nil
}

func (f *fakeDialer) GetCall(_ context.Context, providerCallID string) (voice.Call, error) {
	if f.getErr != nil {
		return voice.Call{}, f.getErr
	}
	return f.liveCall, nil
}

func (f *fakeDialer) EndCall(_ context.Context, providerCallID string) error {
	f.endCalls++
	return f.endErr
}

type fakeConfigs struct {
	agentID string
	err     error
}

func (f fakeConfigs) ExternalAgentID(_ context.Context, configID int64) (string, error) {
	return f.agentID, f.err
}

func newTestService(store *fakeStore, dialer *fakeDialer, configs ConfigSource) *Service {
	s := NewService(store, dialer, configs)
	s.clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	s.newCallID = func() string {
		n++
		return "call_0000000" + string(rune('0'+n))
	}
	return s
}

func validTrigger() TriggerRequest {
	return TriggerRequest{
		DriverName:    "John Doe",
		PhoneNumber:   "+15550001111",
		LoadNumber:    "LD-2026-001",
		AgentConfigID: 1,
	}
}

func TestCreateFromTrigger_ThenStatusIsPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})

	rec, err := svc.CreateFromTrigger(context.Background(), validTrigger())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}

	view, err := svc.GetStatus(context.Background(), rec.CallID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if view.LocalStatus != StatusPending {
		t.Fatalf("expected pending before any provider event, got %s", view.LocalStatus)
	}
	if view.ProviderStatus != nil {
		t.Fatalf("expected no provider status before dial")
	}
}

func TestCreateFromTrigger_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeDialer{}, fakeConfigs{})

	bad := validTrigger()
	bad.PhoneNumber = "123"
	if _, err := svc.CreateFromTrigger(context.Background(), bad); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	bad = validTrigger()
	bad.AgentConfigID = 0
	if _, err := svc.CreateFromTrigger(context.Background(), bad); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTrigger_SuccessStoresProviderIDAndInProgress(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})

	rec, err := svc.Trigger(context.Background(), validTrigger())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", rec.Status)
	}
	if rec.ProviderCallID != "prov_1" {
		t.Fatalf("expected provider call id stored, got %q", rec.ProviderCallID)
	}
}

func TestTrigger_ProviderFailureLeavesTerminalFailed(t *testing.T) {
	store := newFakeStore()
	dialer := &fakeDialer{createErr: errors.New("provider down")}
	svc := newTestService(store, dialer, fakeConfigs{agentID: "agent_1"})

	_, err := svc.Trigger(context.Background(), validTrigger())
	if err == nil {
		t.Fatalf("expected error")
	}

	recs, _ := store.List(context.Background(), 10)
	if len(recs) != 1 {
		t.Fatalf("expected record kept, got %d", len(recs))
	}
	if recs[0].Status != StatusFailed {
		t.Fatalf("expected failed, got %s", recs[0].Status)
	}
}

func TestTrigger_UnpublishedConfigFailsWithoutDialing(t *testing.T) {
	store := newFakeStore()
	dialer := &fakeDialer{}
	svc := newTestService(store, dialer, fakeConfigs{agentID: ""})

	_, err := svc.Trigger(context.Background(), validTrigger())
	if !errors.Is(err, ErrConfigNotPublished) {
		t.Fatalf("expected ErrConfigNotPublished, got %v", err)
	}
	if dialer.createCalls != 0 {
		t.Fatalf("expected no dial attempt")
	}
}

func applyEvent(t *testing.T, svc *Service, ev ProviderEvent) {
	t.Helper()
	if err := svc.ApplyProviderEvent(context.Background(), ev); err != nil {
		t.Fatalf("apply event: %v", err)
	}
}

func triggeredCall(t *testing.T, store *fakeStore, svc *Service) CallRecord {
	t.Helper()
	rec, err := svc.Trigger(context.Background(), validTrigger())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	return rec
}

func TestApplyProviderEvent_MapsStatusesPerTable(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})
	rec := triggeredCall(t, store, svc)

	applyEvent(t, svc, ProviderEvent{EventType: "call_ended", ProviderCallID: rec.ProviderCallID})

	got, _ := store.GetByCallID(context.Background(), rec.CallID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestApplyProviderEvent_UnknownCallIsDroppedSilently(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})

	before := store.writes
	if err := svc.ApplyProviderEvent(context.Background(), ProviderEvent{
		EventType:      "call_started",
		ProviderCallID: "prov_unknown",
	}); err != nil {
		t.Fatalf("expected nil error for unknown call, got %v", err)
	}
	if store.writes != before {
		t.Fatalf("expected no writes for unknown call")
	}
}

func TestApplyProviderEvent_TranscriptDrivesSummary(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})
	rec := triggeredCall(t, store, svc)

	applyEvent(t, svc, ProviderEvent{
		EventType:      "transcript_updated",
		ProviderCallID: rec.ProviderCallID,
		Transcript:     "Yes, the address is correct, no problem at all",
	})

	got, _ := store.GetByCallID(context.Background(), rec.CallID)
	if got.Transcript == "" {
		t.Fatalf("expected transcript stored")
	}
	if got.StructuredSummary["delivery_confirmed"] != true {
		t.Fatalf("expected summary derived, got %v", got.StructuredSummary)
	}
	issues, _ := got.StructuredSummary["issues_identified"].([]string)
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", got.StructuredSummary["issues_identified"])
	}
}

func TestApplyProviderEvent_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})
	rec := triggeredCall(t, store, svc)

	dur := 180
	ev := ProviderEvent{
		EventType:       "call_ended",
		ProviderCallID:  rec.ProviderCallID,
		Transcript:      "issue and concern, call back tomorrow",
		DurationSeconds: &dur,
	}
	applyEvent(t, svc, ev)
	first, _ := store.GetByCallID(context.Background(), rec.CallID)

	applyEvent(t, svc, ev)
	second, _ := store.GetByCallID(context.Background(), rec.CallID)

	first.UpdatedAt = second.UpdatedAt
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical state after redelivery:\n%+v\n%+v", first, second)
	}
	issues, _ := second.StructuredSummary["issues_identified"].([]string)
	if len(issues) != 2 {
		t.Fatalf("expected no duplicate list growth, got %v", issues)
	}
}

func TestApplyProviderEvent_RejectsBackwardTransitionButKeepsFields(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDialer{}, fakeConfigs{agentID: "agent_1"})
	rec := triggeredCall(t, store, svc)

	applyEvent(t, svc, ProviderEvent{EventType: "call_ended", ProviderCallID: rec.ProviderCallID})

	// Late transcript event maps to in_progress (default branch); the
	// status must stay completed while the transcript still lands.
	applyEvent(t, svc, ProviderEvent{
		EventType:      "transcript_updated",
		ProviderCallID: rec.ProviderCallID,
		Transcript:     "final words",
	})

	got, _ := store.GetByCallID(context.Background(), rec.CallID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected status to remain completed, got %s", got.Status)
	}
	if got.Transcript != "final words" {
		t.Fatalf("expected transcript applied, got %q", got.Transcript)
	}
}

func TestEndCall_UnknownIDPerformsNoWrites(t *testing.T) {
	store := newFakeStore()
	dialer := &fakeDialer{}
	svc := newTestService(store, dialer, fakeConfigs{agentID: "agent_1"})

	_, err := svc.EndCall(context.Background(), "call_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if store.writes != 0 || dialer.endCalls != 0 {
		t.Fatalf("expected no writes or provider calls")
	}
}

func TestEndCall_TransitionsToCancelled(t *testing.T) {
	store := newFakeStore()
	dialer := &fakeDialer{}
	svc := newTestService(store, dialer, fakeConfigs{agentID: "agent_1"})
	rec := triggeredCall(t, store, svc)

	got, err := svc.EndCall(context.Background(), rec.CallID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if dialer.endCalls != 1 {
		t.Fatalf("expected provider end call")
	}

	if _, err := svc.EndCall(context.Background(), rec.CallID); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
}

func TestGetStatus_ProviderFailureDegradesToLocal(t *testing.T) {
	store := newFakeStore()
	dialer := &fakeDialer{getErr: errors.New("provider timeout")}
	svc := newTestService(store, dialer, fakeConfigs{agentID: "agent_1"})
	rec := triggeredCall(t, store, svc)

	view, err := svc.GetStatus(context.Background(), rec.CallID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if view.LocalStatus != StatusInProgress {
		t.Fatalf("expected local status, got %s", view.LocalStatus)
	}
	if view.ProviderStatus != nil {
		t.Fatalf("expected degraded view without provider status")
	}
}
