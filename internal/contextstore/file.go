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
	"bytes"
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/idgen"
)

// Document is the YAML layout read by the file provider and by
// "contexts import".
type Document struct {
	Contexts    []ContextEntry            `yaml:"contexts"`
	Preferences []contextlayer.Preference `yaml:"preferences,omitempty"`
}

// ContextEntry is a context as written in YAML. IsActive defaults to true.
type ContextEntry struct {
	ID          string         `yaml:"id"`
	TenantKey   string         `yaml:"tenant_key"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Content     string         `yaml:"content,omitempty"`
	Scope       string         `yaml:"scope"`
	Priority    int32          `yaml:"priority,omitempty"`
	IsActive    *bool          `yaml:"is_active,omitempty"`
	Overrides   map[string]any `yaml:"overrides,omitempty"`
}

func (e ContextEntry) toContext() (contextlayer.Context, error) {
	if e.TenantKey == "" {
		return contextlayer.Context{}, fmt.Errorf("context %s: tenant_key is required", e.ID)
	}
	scope, err := contextlayer.ParseScope(e.Scope)
	if err != nil {
		return contextlayer.Context{}, fmt.Errorf("context %s: %w", e.ID, err)
	}
	active := true
	if e.IsActive != nil {
		active = *e.IsActive
	}
	return contextlayer.Context{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Content:     e.Content,
		Scope:       scope,
		Priority:    e.Priority,
		TenantKey:   e.TenantKey,
		IsActive:    active,
		Overrides:   e.Overrides,
	}, nil
}

// ReadDocument loads a YAML document from a path, or from an environment
// variable when filename is "env:NAME".
func ReadDocument(filename string) ([]byte, error) {
	if envVar, ok := strings.CutPrefix(filename, "env:"); ok {
		contents := os.Getenv(envVar)
		if contents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return []byte(contents), nil
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read contexts from file %s: %w", filename, err)
	}
	return contents, nil
}

// ParseDocument decodes and validates a document. Contexts without an id
// are given a new ULID.
func ParseDocument(contents []byte) ([]contextlayer.Context, []contextlayer.Preference, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal contexts: %w", err)
	}

	type key struct{ tenant, id string }
	seen := make(map[key]bool, len(doc.Contexts))
	contexts := make([]contextlayer.Context, 0, len(doc.Contexts))
	for _, e := range doc.Contexts {
		if e.ID == "" {
			e.ID = idgen.NextULID()
		}
		c, err := e.toContext()
		if err != nil {
			return nil, nil, err
		}
		k := key{c.TenantKey, c.ID}
		if seen[k] {
			return nil, nil, fmt.Errorf("duplicate context %s in tenant %s", c.ID, c.TenantKey)
		}
		seen[k] = true
		contexts = append(contexts, c)
	}

	for _, p := range doc.Preferences {
		if !seen[key{p.TenantKey, p.ContextID}] {
			return nil, nil, fmt.Errorf("preference for user %s references unknown context %s in tenant %s", p.UserID, p.ContextID, p.TenantKey)
		}
	}
	return contexts, doc.Preferences, nil
}

type prefKey struct {
	userID, contextID, tenantKey string
}

// fileProvider serves contexts from a document loaded at startup.
// Preference writes are kept in memory and lost on restart.
type fileProvider struct {
	contexts map[string][]contextlayer.Context // tenant -> contexts
	known    map[string]map[string]bool       // tenant -> context ids

	mu    sync.RWMutex
	prefs map[prefKey]bool
}

var _ Provider = (*fileProvider)(nil)

func NewFileProvider(filename string) (Provider, error) {
	contents, err := ReadDocument(filename)
	if err != nil {
		return nil, err
	}
	p, err := newFileProviderFromContents(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

func newFileProviderFromContents(contents []byte) (*fileProvider, error) {
	contexts, prefs, err := ParseDocument(contents)
	if err != nil {
		return nil, err
	}

	p := &fileProvider{
		contexts: make(map[string][]contextlayer.Context),
		known:    make(map[string]map[string]bool),
		prefs:    make(map[prefKey]bool, len(prefs)),
	}
	for _, c := range contexts {
		if p.known[c.TenantKey] == nil {
			p.known[c.TenantKey] = make(map[string]bool)
		}
		p.known[c.TenantKey][c.ID] = true
		if c.IsActive {
			p.contexts[c.TenantKey] = append(p.contexts[c.TenantKey], c)
		}
	}
	for tenant := range p.contexts {
		slices.SortStableFunc(p.contexts[tenant], func(a, b contextlayer.Context) int {
			return cmp.Compare(b.Priority, a.Priority)
		})
	}
	for _, pref := range prefs {
		p.prefs[prefKey{pref.UserID, pref.ContextID, pref.TenantKey}] = pref.IsEnabled
	}
	return p, nil
}

func (p *fileProvider) ListActiveContexts(_ context.Context, tenantKey string) ([]contextlayer.Context, error) {
	src := p.contexts[tenantKey]
	ret := make([]contextlayer.Context, len(src))
	for i, c := range src {
		ret[i] = c.Clone()
	}
	return ret, nil
}

func (p *fileProvider) ListPreferences(_ context.Context, userID, tenantKey string) ([]contextlayer.Preference, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ret []contextlayer.Preference
	for k, enabled := range p.prefs {
		if k.userID == userID && k.tenantKey == tenantKey {
			ret = append(ret, contextlayer.Preference{
				UserID:    k.userID,
				ContextID: k.contextID,
				TenantKey: k.tenantKey,
				IsEnabled: enabled,
			})
		}
	}
	return ret, nil
}

func (p *fileProvider) GetPreference(_ context.Context, userID, contextID, tenantKey string) (contextlayer.Preference, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	enabled, ok := p.prefs[prefKey{userID, contextID, tenantKey}]
	if !ok {
		return contextlayer.Preference{}, ErrPreferenceNotFound
	}
	return contextlayer.Preference{
		UserID:    userID,
		ContextID: contextID,
		TenantKey: tenantKey,
		IsEnabled: enabled,
	}, nil
}

func (p *fileProvider) UpdatePreference(_ context.Context, pref contextlayer.Preference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := prefKey{pref.UserID, pref.ContextID, pref.TenantKey}
	if _, ok := p.prefs[k]; !ok {
		return ErrPreferenceNotFound
	}
	p.prefs[k] = pref.IsEnabled
	return nil
}

func (p *fileProvider) InsertPreference(_ context.Context, pref contextlayer.Preference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.known[pref.TenantKey][pref.ContextID] {
		return fmt.Errorf("context %s does not exist in tenant %s", pref.ContextID, pref.TenantKey)
	}
	k := prefKey{pref.UserID, pref.ContextID, pref.TenantKey}
	if _, ok := p.prefs[k]; ok {
		return fmt.Errorf("preference for user %s and context %s already exists", pref.UserID, pref.ContextID)
	}
	p.prefs[k] = pref.IsEnabled
	return nil
}
