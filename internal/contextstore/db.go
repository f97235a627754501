// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/contextlayers/configdb"
	"github.com/cardinalhq/contextlayers/internal/contextlayer"
)

// ConfigDBLayerFetcher is the subset of configdb the database provider uses.
type ConfigDBLayerFetcher interface {
	ListActiveLayerContexts(ctx context.Context, tenantKey string) ([]configdb.LayerContext, error)
	ListLayerPreferences(ctx context.Context, arg configdb.ListLayerPreferencesParams) ([]configdb.LayerPreference, error)
	GetLayerPreference(ctx context.Context, arg configdb.GetLayerPreferenceParams) (configdb.LayerPreference, error)
	UpdateLayerPreference(ctx context.Context, arg configdb.UpdateLayerPreferenceParams) (int64, error)
	InsertLayerPreference(ctx context.Context, arg configdb.InsertLayerPreferenceParams) error
}

var _ ConfigDBLayerFetcher = (*configdb.Store)(nil)

type databaseProvider struct {
	cdb ConfigDBLayerFetcher
}

var _ Provider = (*databaseProvider)(nil)

func NewDatabaseProvider(cdb ConfigDBLayerFetcher) Provider {
	return &databaseProvider{
		cdb: cdb,
	}
}

func (p *databaseProvider) ListActiveContexts(ctx context.Context, tenantKey string) ([]contextlayer.Context, error) {
	rows, err := p.cdb.ListActiveLayerContexts(ctx, tenantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts for tenant %s: %w", tenantKey, err)
	}

	ret := make([]contextlayer.Context, 0, len(rows))
	for _, row := range rows {
		c, err := ContextFromRow(row)
		if err != nil {
			// One malformed row must not hide the rest of the tenant's layers.
			slog.Warn("Skipping malformed context row",
				slog.String("tenant_key", row.TenantKey),
				slog.String("context_id", row.ID),
				slog.Any("error", err))
			continue
		}
		ret = append(ret, c)
	}
	return ret, nil
}

func (p *databaseProvider) ListPreferences(ctx context.Context, userID, tenantKey string) ([]contextlayer.Preference, error) {
	rows, err := p.cdb.ListLayerPreferences(ctx, configdb.ListLayerPreferencesParams{
		UserID:    userID,
		TenantKey: tenantKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences for user %s in tenant %s: %w", userID, tenantKey, err)
	}

	ret := make([]contextlayer.Preference, len(rows))
	for i, row := range rows {
		ret[i] = preferenceFromRow(row)
	}
	return ret, nil
}

func (p *databaseProvider) GetPreference(ctx context.Context, userID, contextID, tenantKey string) (contextlayer.Preference, error) {
	row, err := p.cdb.GetLayerPreference(ctx, configdb.GetLayerPreferenceParams{
		UserID:    userID,
		ContextID: contextID,
		TenantKey: tenantKey,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return contextlayer.Preference{}, ErrPreferenceNotFound
	}
	if err != nil {
		return contextlayer.Preference{}, fmt.Errorf("failed to get preference: %w", err)
	}
	return preferenceFromRow(row), nil
}

func (p *databaseProvider) UpdatePreference(ctx context.Context, pref contextlayer.Preference) error {
	n, err := p.cdb.UpdateLayerPreference(ctx, configdb.UpdateLayerPreferenceParams{
		IsEnabled: pref.IsEnabled,
		UserID:    pref.UserID,
		ContextID: pref.ContextID,
		TenantKey: pref.TenantKey,
	})
	if err != nil {
		return fmt.Errorf("failed to update preference: %w", err)
	}
	if n == 0 {
		return ErrPreferenceNotFound
	}
	return nil
}

func (p *databaseProvider) InsertPreference(ctx context.Context, pref contextlayer.Preference) error {
	err := p.cdb.InsertLayerPreference(ctx, configdb.InsertLayerPreferenceParams{
		UserID:    pref.UserID,
		ContextID: pref.ContextID,
		TenantKey: pref.TenantKey,
		IsEnabled: pref.IsEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to insert preference: %w", err)
	}
	return nil
}

// ContextFromRow converts a configdb row into a context layer.
func ContextFromRow(row configdb.LayerContext) (contextlayer.Context, error) {
	scope, err := contextlayer.ParseScope(row.Scope)
	if err != nil {
		return contextlayer.Context{}, err
	}

	var overrides map[string]any
	if len(row.Overrides) > 0 {
		if err := json.Unmarshal(row.Overrides, &overrides); err != nil {
			return contextlayer.Context{}, fmt.Errorf("invalid overrides: %w", err)
		}
	}

	return contextlayer.Context{
		ID:          row.ID,
		Name:        row.Name,
		Description: safeStringDeref(row.Description),
		Content:     row.Content,
		Scope:       scope,
		Priority:    row.Priority,
		TenantKey:   row.TenantKey,
		IsActive:    row.IsActive,
		Overrides:   overrides,
	}, nil
}

// UpsertParamsFromContext is the inverse of ContextFromRow.
func UpsertParamsFromContext(c contextlayer.Context) (configdb.UpsertLayerContextParams, error) {
	overrides := c.Overrides
	if overrides == nil {
		overrides = map[string]any{}
	}
	raw, err := json.Marshal(overrides)
	if err != nil {
		return configdb.UpsertLayerContextParams{}, fmt.Errorf("context %s: failed to encode overrides: %w", c.ID, err)
	}

	var description *string
	if c.Description != "" {
		description = &c.Description
	}

	return configdb.UpsertLayerContextParams{
		TenantKey:   c.TenantKey,
		ID:          c.ID,
		Name:        c.Name,
		Description: description,
		Content:     c.Content,
		Scope:       string(c.Scope),
		Priority:    c.Priority,
		IsActive:    c.IsActive,
		Overrides:   raw,
	}, nil
}

func preferenceFromRow(row configdb.LayerPreference) contextlayer.Preference {
	return contextlayer.Preference{
		UserID:    row.UserID,
		ContextID: row.ContextID,
		TenantKey: row.TenantKey,
		IsEnabled: row.IsEnabled,
	}
}

func safeStringDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
