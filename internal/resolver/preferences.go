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

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/contextstore"
	"github.com/cardinalhq/contextlayers/internal/logctx"
)

var errWriteIncomplete = errors.New("preference write did not complete")

// PreferenceUpdate is one item of a bulk preference change.
type PreferenceUpdate struct {
	ContextID string `json:"context_id"`
	Enabled   bool   `json:"enabled"`
}

// ItemResult reports the outcome of the update at the same position in
// the request.
type ItemResult struct {
	ContextID string `json:"context_id"`
	Success   bool   `json:"success"`
	Err       error  `json:"-"`
}

type BulkResult struct {
	Items []ItemResult `json:"items"`
	// Success is true only when every item succeeded.
	Success bool `json:"success"`
	// Err aggregates the per-item failures, nil when Success is true.
	Err error `json:"-"`
}

// DisplayPreference is a read-only row for a preferences screen.
type DisplayPreference struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Scope       string `json:"scope"`
	Priority    int32  `json:"priority"`
	IsEnabled   bool   `json:"is_enabled"`
	Editable    bool   `json:"editable"`
	Licensed    bool   `json:"licensed"`
}

// SetPreference enables or disables one context for a user. It updates the
// existing row when there is one and inserts otherwise. On success only the
// user's cached preferences for the tenant are dropped.
func (r *Resolver) SetPreference(ctx context.Context, userID, contextID, tenantKey string, enabled bool) bool {
	ctx = r.requestContext(ctx, userID, tenantKey)
	return r.setPreference(ctx, userID, contextID, tenantKey, enabled) == nil
}

func (r *Resolver) setPreference(ctx context.Context, userID, contextID, tenantKey string, enabled bool) error {
	action, err := r.writePreference(ctx, contextlayer.Preference{
		UserID:    userID,
		ContextID: contextID,
		TenantKey: tenantKey,
		IsEnabled: enabled,
	})
	r.recordWrite(ctx, contextID, action, err)
	if err != nil {
		return err
	}
	r.invalidatePrefs(prefsKey(userID, tenantKey))
	return nil
}

func (r *Resolver) writePreference(ctx context.Context, pref contextlayer.Preference) (string, error) {
	_, err := r.provider.GetPreference(ctx, pref.UserID, pref.ContextID, pref.TenantKey)
	switch {
	case err == nil:
		return "updated", r.provider.UpdatePreference(ctx, pref)
	case errors.Is(err, contextstore.ErrPreferenceNotFound):
		return "created", r.provider.InsertPreference(ctx, pref)
	default:
		return "lookup", fmt.Errorf("failed to look up preference: %w", err)
	}
}

// recordWrite is the single place preference write outcomes are logged
// and counted.
func (r *Resolver) recordWrite(ctx context.Context, contextID, action string, err error) {
	logger := logctx.FromContext(ctx)
	if err != nil {
		logger.Error("Failed to save preference",
			slog.String("context_id", contextID),
			slog.String("action", action),
			slog.Any("error", err))
		recordStoreError(ctx, "write_preference")
		recordPreferenceWrite(ctx, "failed")
		return
	}
	logger.Info("Preference "+action, slog.String("context_id", contextID))
	recordPreferenceWrite(ctx, action)
}

// SetPreferencesBulk applies every update concurrently. A failing item
// never stops the others; results are reported by position.
func (r *Resolver) SetPreferencesBulk(ctx context.Context, userID, tenantKey string, updates []PreferenceUpdate) BulkResult {
	ctx = r.requestContext(ctx, userID, tenantKey)

	errs := make([]error, len(updates))
	var g errgroup.Group
	for i, u := range updates {
		// Stays set if the write panics before reporting back.
		errs[i] = errWriteIncomplete
		g.Go(safely(func() {
			errs[i] = r.setPreference(ctx, userID, u.ContextID, tenantKey, u.Enabled)
		}))
	}
	if err := g.Wait(); err != nil {
		logctx.FromContext(ctx).Error("Bulk preference write panicked", slog.Any("error", err))
	}

	result := BulkResult{
		Items:   make([]ItemResult, len(updates)),
		Success: true,
	}
	var merr *multierror.Error
	for i, u := range updates {
		err := errs[i]
		result.Items[i] = ItemResult{ContextID: u.ContextID, Success: err == nil, Err: err}
		if err != nil {
			result.Success = false
			merr = multierror.Append(merr, fmt.Errorf("context %s: %w", u.ContextID, err))
		}
	}
	result.Err = merr.ErrorOrNil()
	return result
}

// ListPreferencesForDisplay joins the tenant's contexts with the user's
// preferences, in hierarchy order. Contexts without a preference show as
// enabled.
func (r *Resolver) ListPreferencesForDisplay(ctx context.Context, userID, tenantKey string) []DisplayPreference {
	ctx = r.requestContext(ctx, userID, tenantKey)

	var (
		contexts []contextlayer.Context
		prefs    []contextlayer.Preference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(safely(func() { contexts = r.fetchContexts(gctx, tenantKey) }))
	g.Go(safely(func() { prefs = r.fetchAllPreferences(gctx, userID, tenantKey) }))
	if err := g.Wait(); err != nil {
		logctx.FromContext(ctx).Error("Failed to load preferences for display", slog.Any("error", err))
		return []DisplayPreference{}
	}

	enabled := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		enabled[p.ContextID] = p.IsEnabled
	}

	ordered := contextlayer.Order(contexts)
	ret := make([]DisplayPreference, len(ordered))
	for i, c := range ordered {
		isEnabled, ok := enabled[c.ID]
		ret[i] = DisplayPreference{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Scope:       c.Scope.DisplayName(),
			Priority:    c.Priority,
			IsEnabled:   isEnabled || !ok,
			// No permission or entitlement policy exists yet.
			Editable: true,
			Licensed: false,
		}
	}
	return ret
}
