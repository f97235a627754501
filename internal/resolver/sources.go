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

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
)

func contextsKey(tenantKey string) string {
	return "contexts:" + tenantKey
}

func prefsKey(userID, tenantKey string) string {
	return "prefs:" + userID + ":" + tenantKey
}

// fetchContexts returns the tenant's active contexts, from cache when
// possible. Store failures yield an empty slice that is not cached.
func (r *Resolver) fetchContexts(ctx context.Context, tenantKey string) []contextlayer.Context {
	key := contextsKey(tenantKey)
	if cached, ok := r.contexts.Get(key, ""); ok {
		recordCacheLookup(ctx, "contexts", true)
		return cached
	}
	recordCacheLookup(ctx, "contexts", false)

	rows, ok := failSoft(ctx, "list_contexts", func(ctx context.Context) ([]contextlayer.Context, error) {
		return r.provider.ListActiveContexts(ctx, tenantKey)
	})
	if ok {
		r.contexts.Set(key, rows, "")
	}
	return rows
}

// fetchAllPreferences loads every preference the user has in the tenant
// with a single store call. Entries are tagged with the user id so they
// can never be served to anyone else.
func (r *Resolver) fetchAllPreferences(ctx context.Context, userID, tenantKey string) []contextlayer.Preference {
	key := prefsKey(userID, tenantKey)
	if cached, ok := r.prefs.Get(key, userID); ok {
		recordCacheLookup(ctx, "preferences", true)
		return cached
	}
	recordCacheLookup(ctx, "preferences", false)

	version := r.prefsVersion(key)
	rows, ok := failSoft(ctx, "list_preferences", func(ctx context.Context) ([]contextlayer.Preference, error) {
		return r.provider.ListPreferences(ctx, userID, tenantKey)
	})
	if ok {
		r.cachePrefs(key, version, rows, userID)
	}
	return rows
}

// prefsVersion identifies the last invalidation of key. It must be taken
// before the store read whose result is later passed to cachePrefs.
func (r *Resolver) prefsVersion(key string) uint64 {
	r.prefsMu.Lock()
	defer r.prefsMu.Unlock()
	return max(r.prefsEpoch, r.prefsGen[key])
}

// cachePrefs stores rows unless key was invalidated after version was
// taken, in which case the rows may predate a write and are dropped.
func (r *Resolver) cachePrefs(key string, version uint64, rows []contextlayer.Preference, userID string) {
	r.prefsMu.Lock()
	defer r.prefsMu.Unlock()
	if max(r.prefsEpoch, r.prefsGen[key]) != version {
		return
	}
	r.prefs.Set(key, rows, userID)
}

// invalidatePrefs drops the cached preferences for key and makes any read
// of key already in flight skip its cache fill.
func (r *Resolver) invalidatePrefs(key string) {
	r.prefsMu.Lock()
	defer r.prefsMu.Unlock()
	r.prefsSeq++
	r.prefsGen[key] = r.prefsSeq
	r.prefs.Delete(key)
}
