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
	"maps"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultInstruction is used as the merged text whenever no enabled context
// contributes any content. Consumers never receive an empty instruction.
const DefaultInstruction = "You are a helpful assistant."

// Context is one configuration layer.
type Context struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Content     string         `json:"content" yaml:"content"`
	Scope       Scope          `json:"scope" yaml:"scope"`
	Priority    int32          `json:"priority" yaml:"priority"`
	TenantKey   string         `json:"tenant_key" yaml:"tenant_key"`
	IsActive    bool           `json:"is_active" yaml:"is_active"`
	Overrides   map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// Clone returns a copy whose Overrides map is not shared with c.
func (c Context) Clone() Context {
	out := c
	if c.Overrides != nil {
		out.Overrides = maps.Clone(c.Overrides)
	}
	return out
}

// Preference is a user's explicit toggle for one context.
// A missing preference means the context is enabled.
type Preference struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	ContextID string `json:"context_id" yaml:"context_id"`
	TenantKey string `json:"tenant_key" yaml:"tenant_key"`
	IsEnabled bool   `json:"is_enabled" yaml:"is_enabled"`
}

// ResolvedContext is the merged view handed to a downstream consumer.
// It is built fresh on every resolution and never persisted.
type ResolvedContext struct {
	Contexts          []Context      `json:"contexts"`
	MergedText        string         `json:"merged_text"`
	MergedOverrides   map[string]any `json:"merged_overrides"`
	AppliedContextIDs []string       `json:"applied_context_ids"`
	HierarchyOrder    []Scope        `json:"hierarchy_order"`
}

// Fallback is the minimal result returned when resolution cannot proceed.
func Fallback() ResolvedContext {
	return ResolvedContext{
		Contexts:          []Context{},
		MergedText:        DefaultInstruction,
		MergedOverrides:   map[string]any{},
		AppliedContextIDs: []string{},
		HierarchyOrder:    Hierarchy(),
	}
}

// Build packages already filtered and ordered contexts into a result.
func Build(ordered []Context) ResolvedContext {
	text, overrides := Merge(ordered)
	rc := ResolvedContext{
		Contexts:          make([]Context, len(ordered)),
		MergedText:        text,
		MergedOverrides:   overrides,
		AppliedContextIDs: make([]string, len(ordered)),
		HierarchyOrder:    Hierarchy(),
	}
	for i, c := range ordered {
		rc.Contexts[i] = c.Clone()
		rc.AppliedContextIDs[i] = c.ID
	}
	return rc
}

// Fingerprint hashes the applied ids and merged text. Two resolutions with
// the same fingerprint produced the same instruction from the same layers.
func (rc ResolvedContext) Fingerprint() uint64 {
	d := xxhash.New()
	for _, id := range rc.AppliedContextIDs {
		_, _ = d.WriteString(strconv.Itoa(len(id)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(id)
	}
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(rc.MergedText)
	return d.Sum64()
}
