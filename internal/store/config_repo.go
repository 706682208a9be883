package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"voice-agent-admin/internal/agentconfig"
)

const configTable = "agent_configurations"

// ConfigRepo persists agent configurations in the row-store.
type ConfigRepo struct {
	client *Client
	clock  func() time.Time
}

func NewConfigRepo(client *Client) *ConfigRepo {
	return &ConfigRepo{client: client, clock: time.Now}
}

func (r *ConfigRepo) Insert(ctx context.Context, cfg agentconfig.AgentConfiguration) (agentconfig.AgentConfiguration, error) {
	now := r.clock().UTC()
	cfg.ID = 0 // store-assigned
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	var out agentconfig.AgentConfiguration
	if err := r.client.Insert(ctx, configTable, cfg, &out); err != nil {
		return agentconfig.AgentConfiguration{}, err
	}
	return out, nil
}

func (r *ConfigRepo) GetByID(ctx context.Context, id int64) (agentconfig.AgentConfiguration, error) {
	var out agentconfig.AgentConfiguration
	err := r.client.SelectOne(ctx, configTable, Where("id", formatID(id)), &out)
	return out, domainErr(err, agentconfig.ErrNotFound)
}

func (r *ConfigRepo) List(ctx context.Context) ([]agentconfig.AgentConfiguration, error) {
	var out []agentconfig.AgentConfiguration
	err := r.client.Select(ctx, configTable, Query{}.OrderBy("created_at", true), &out)
	return out, err
}

func (r *ConfigRepo) GetActive(ctx context.Context) (agentconfig.AgentConfiguration, error) {
	var out agentconfig.AgentConfiguration
	err := r.client.SelectOne(ctx, configTable, Where("is_active", "true"), &out)
	return out, domainErr(err, agentconfig.ErrNotFound)
}

func (r *ConfigRepo) UpdateByID(ctx context.Context, id int64, patch agentconfig.Patch) (agentconfig.AgentConfiguration, error) {
	fields := patch.Fields()
	fields["updated_at"] = r.clock().UTC()

	var out agentconfig.AgentConfiguration
	err := r.client.Update(ctx, configTable, Where("id", formatID(id)), fields, &out)
	return out, domainErr(err, agentconfig.ErrNotFound)
}

func (r *ConfigRepo) DeleteByID(ctx context.Context, id int64) error {
	n, err := r.client.Delete(ctx, configTable, Where("id", formatID(id)))
	if err != nil {
		return err
	}
	if n == 0 {
		return agentconfig.ErrNotFound
	}
	return nil
}

// DeactivateOthers clears the active flag on every configuration except
// the given one. Zero matches is fine (nothing else was active).
func (r *ConfigRepo) DeactivateOthers(ctx context.Context, id int64) error {
	fields := map[string]any{
		"is_active":  false,
		"updated_at": r.clock().UTC(),
	}
	q := Where("is_active", "true").AndNeq("id", formatID(id))
	return r.client.Update(ctx, configTable, q, fields, nil)
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// domainErr swaps the store-level not-found sentinel for the owning
// package's, so services and handlers never import this package for it.
func domainErr(err, notFound error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound
	}
	return err
}
