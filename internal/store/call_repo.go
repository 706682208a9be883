package store

import (
	"context"
	"time"

	"voice-agent-admin/internal/calls"
)

const callTable = "call_records"

// CallRepo persists call records in the row-store.
//
// Lookup by provider_call_id is an indexed equality filter: webhook events
// only carry the provider's identifier, never our local call_id.
type CallRepo struct {
	client *Client
	clock  func() time.Time
}

func NewCallRepo(client *Client) *CallRepo {
	return &CallRepo{client: client, clock: time.Now}
}

func (r *CallRepo) Insert(ctx context.Context, rec calls.CallRecord) (calls.CallRecord, error) {
	now := r.clock().UTC()
	rec.ID = 0 // store-assigned
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.StructuredSummary == nil {
		rec.StructuredSummary = map[string]any{}
	}

	var out calls.CallRecord
	if err := r.client.Insert(ctx, callTable, rec, &out); err != nil {
		return calls.CallRecord{}, err
	}
	return out, nil
}

func (r *CallRepo) GetByCallID(ctx context.Context, callID string) (calls.CallRecord, error) {
	var out calls.CallRecord
	err := r.client.SelectOne(ctx, callTable, Where("call_id", callID), &out)
	return out, domainErr(err, calls.ErrNotFound)
}

func (r *CallRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (calls.CallRecord, error) {
	var out calls.CallRecord
	err := r.client.SelectOne(ctx, callTable, Where("provider_call_id", providerCallID), &out)
	return out, domainErr(err, calls.ErrNotFound)
}

func (r *CallRepo) List(ctx context.Context, limit int) ([]calls.CallRecord, error) {
	var out []calls.CallRecord
	q := Query{}.OrderBy("created_at", true).Limit(limit)
	err := r.client.Select(ctx, callTable, q, &out)
	return out, err
}

func (r *CallRepo) ListByConfig(ctx context.Context, configID int64, limit int) ([]calls.CallRecord, error) {
	var out []calls.CallRecord
	q := Where("agent_config_id", formatID(configID)).OrderBy("created_at", true).Limit(limit)
	err := r.client.Select(ctx, callTable, q, &out)
	return out, err
}

func (r *CallRepo) UpdateByCallID(ctx context.Context, callID string, patch calls.Patch) (calls.CallRecord, error) {
	fields := patch.Fields()
	fields["updated_at"] = r.clock().UTC()

	var out calls.CallRecord
	err := r.client.Update(ctx, callTable, Where("call_id", callID), fields, &out)
	return out, domainErr(err, calls.ErrNotFound)
}

func (r *CallRepo) DeleteByCallID(ctx context.Context, callID string) error {
	n, err := r.client.Delete(ctx, callTable, Where("call_id", callID))
	if err != nil {
		return err
	}
	if n == 0 {
		return calls.ErrNotFound
	}
	return nil
}

// HasCallsForConfig reports whether any call record references the
// configuration. Used to block deletion of in-use configurations.
func (r *CallRepo) HasCallsForConfig(ctx context.Context, configID int64) (bool, error) {
	rows, err := r.ListByConfig(ctx, configID, 1)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
