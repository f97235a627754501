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

package contextlayer

import (
	"cmp"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// FilterEnabled drops every context that has an explicit disabled
// preference. Contexts without a preference are kept.
func FilterEnabled(contexts []Context, prefs []Preference) []Context {
	disabled := mapset.NewThreadUnsafeSetWithSize[string](len(prefs))
	for _, p := range prefs {
		// Later rows for the same context win, as with a map lookup.
		if p.IsEnabled {
			disabled.Remove(p.ContextID)
		} else {
			disabled.Add(p.ContextID)
		}
	}

	out := make([]Context, 0, len(contexts))
	for _, c := range contexts {
		if disabled.Contains(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Order returns the contexts sorted by scope (global first) and then by
// priority, highest first. Equal keys keep their input order.
// The input slice is not modified.
func Order(contexts []Context) []Context {
	out := slices.Clone(contexts)
	slices.SortStableFunc(out, func(a, b Context) int {
		if c := cmp.Compare(a.Scope.Rank(), b.Scope.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out
}

// Merge folds ordered contexts into one instruction and one override map.
// Later contexts overwrite earlier keys, so the most specific layer wins.
func Merge(ordered []Context) (string, map[string]any) {
	parts := make([]string, 0, len(ordered))
	overrides := make(map[string]any)
	for _, c := range ordered {
		if text := strings.TrimSpace(c.Content); text != "" {
			parts = append(parts, text)
		}
		for k, v := range c.Overrides {
			overrides[k] = v
		}
	}
	if len(parts) == 0 {
		return DefaultInstruction, overrides
	}
	return strings.Join(parts, "\n\n"), overrides
}
