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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/contextstore"
)

// mockProvider is a concurrency-safe in-memory contextstore.Provider.
type mockProvider struct {
	mu       sync.Mutex
	contexts map[string][]contextlayer.Context // tenant -> contexts
	prefs    map[string]contextlayer.Preference // user:context:tenant

	listContextsCalls atomic.Int32
	listPrefsCalls    atomic.Int32
	getPrefCalls      atomic.Int32
	updateCalls       atomic.Int32
	insertCalls       atomic.Int32

	listContextsErr error
	listPrefsErr    error
	getPrefErr      error
	writeErr        error
	panicOnList     bool

	// Hooks are set before the provider is shared.
	beforeList     func() error // ListActiveContexts and ListPreferences
	beforeGetPref  func() error
	afterListPrefs func() // runs after the rows are read, without m.mu held
}

var _ contextstore.Provider = (*mockProvider)(nil)

func newMockProvider(contexts ...contextlayer.Context) *mockProvider {
	m := &mockProvider{
		contexts: make(map[string][]contextlayer.Context),
		prefs:    make(map[string]contextlayer.Preference),
	}
	for _, c := range contexts {
		c.IsActive = true
		m.contexts[c.TenantKey] = append(m.contexts[c.TenantKey], c)
	}
	return m
}

func prefKey(userID, contextID, tenantKey string) string {
	return userID + ":" + contextID + ":" + tenantKey
}

func (m *mockProvider) setPref(p contextlayer.Preference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefKey(p.UserID, p.ContextID, p.TenantKey)] = p
}

func (m *mockProvider) ListActiveContexts(ctx context.Context, tenantKey string) ([]contextlayer.Context, error) {
	m.listContextsCalls.Add(1)
	if m.panicOnList {
		panic("store exploded")
	}
	if m.beforeList != nil {
		if err := m.beforeList(); err != nil {
			return nil, err
		}
	}
	if m.listContextsErr != nil {
		return nil, m.listContextsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []contextlayer.Context
	for _, c := range m.contexts[tenantKey] {
		ret = append(ret, c.Clone())
	}
	return ret, nil
}

func (m *mockProvider) ListPreferences(ctx context.Context, userID, tenantKey string) ([]contextlayer.Preference, error) {
	m.listPrefsCalls.Add(1)
	if m.listPrefsErr != nil {
		return nil, m.listPrefsErr
	}
	if m.beforeList != nil {
		if err := m.beforeList(); err != nil {
			return nil, err
		}
	}
	var ret []contextlayer.Preference
	m.mu.Lock()
	for _, p := range m.prefs {
		if p.UserID == userID && p.TenantKey == tenantKey {
			ret = append(ret, p)
		}
	}
	m.mu.Unlock()
	if m.afterListPrefs != nil {
		m.afterListPrefs()
	}
	return ret, nil
}

func (m *mockProvider) GetPreference(ctx context.Context, userID, contextID, tenantKey string) (contextlayer.Preference, error) {
	m.getPrefCalls.Add(1)
	if m.getPrefErr != nil {
		return contextlayer.Preference{}, m.getPrefErr
	}
	if m.beforeGetPref != nil {
		if err := m.beforeGetPref(); err != nil {
			return contextlayer.Preference{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[prefKey(userID, contextID, tenantKey)]
	if !ok {
		return contextlayer.Preference{}, contextstore.ErrPreferenceNotFound
	}
	return p, nil
}

func (m *mockProvider) UpdatePreference(ctx context.Context, pref contextlayer.Preference) error {
	m.updateCalls.Add(1)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.setPref(pref)
	return nil
}

func (m *mockProvider) InsertPreference(ctx context.Context, pref contextlayer.Preference) error {
	m.insertCalls.Add(1)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.mu.Lock()
	known := false
	for _, c := range m.contexts[pref.TenantKey] {
		if c.ID == pref.ContextID {
			known = true
		}
	}
	m.mu.Unlock()
	if !known {
		return fmt.Errorf("insert or update on table \"layer_preferences\" violates foreign key constraint (context %s)", pref.ContextID)
	}
	m.setPref(pref)
	return nil
}

// barrier releases every caller once n of them are waiting. A caller that
// waits longer than timeout gets an error, which is what happens when the
// calls are made one after another.
type barrier struct {
	n       int32
	timeout time.Duration
	arrived atomic.Int32
	all     chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: int32(n), timeout: 2 * time.Second, all: make(chan struct{})}
}

func (b *barrier) wait() error {
	if b.arrived.Add(1) == b.n {
		close(b.all)
	}
	select {
	case <-b.all:
		return nil
	case <-time.After(b.timeout):
		return errors.New("timed out waiting for concurrent callers")
	}
}

func newTestResolver(t *testing.T, p contextstore.Provider) *Resolver {
	t.Helper()
	r := New(p, Config{CacheTTL: time.Minute})
	t.Cleanup(r.Close)
	return r
}

var (
	ctxG = contextlayer.Context{ID: "G", TenantKey: "acme", Name: "House", Scope: contextlayer.ScopeGlobal, Priority: 1, Content: "Be concise."}
	ctxT = contextlayer.Context{ID: "T", TenantKey: "acme", Name: "Sports", Scope: contextlayer.ScopeTeam, Priority: 5, Content: "Use sports metaphors."}
)

func TestResolve_DefaultEnabled(t *testing.T) {
	r := newTestResolver(t, newMockProvider(ctxG, ctxT))

	rc := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, []string{"G", "T"}, rc.AppliedContextIDs)
	assert.Equal(t, "Be concise.\n\nUse sports metaphors.", rc.MergedText)
	assert.Equal(t, contextlayer.HierarchyOrder, rc.HierarchyOrder)
}

func TestResolve_DisabledPreference(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	m.setPref(contextlayer.Preference{UserID: "u1", ContextID: "T", TenantKey: "acme", IsEnabled: false})
	r := newTestResolver(t, m)

	rc := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, []string{"G"}, rc.AppliedContextIDs)
	assert.Equal(t, "Be concise.", rc.MergedText)

	// another user in the same tenant is unaffected
	rc = r.Resolve(context.Background(), "u2", "acme")
	assert.Equal(t, []string{"G", "T"}, rc.AppliedContextIDs)
}

func TestResolve_OverridesMostSpecificWins(t *testing.T) {
	a := contextlayer.Context{ID: "A", TenantKey: "acme", Scope: contextlayer.ScopePersonal, Priority: 1, Overrides: map[string]any{"tone": "formal"}}
	b := contextlayer.Context{ID: "B", TenantKey: "acme", Scope: contextlayer.ScopeGlobal, Priority: 1, Overrides: map[string]any{"tone": "casual", "verbosity": "low"}}
	r := newTestResolver(t, newMockProvider(a, b))

	rc := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, []string{"B", "A"}, rc.AppliedContextIDs)
	assert.Equal(t, map[string]any{"tone": "formal", "verbosity": "low"}, rc.MergedOverrides)
	assert.Equal(t, contextlayer.DefaultInstruction, rc.MergedText, "no content falls back")
}

func TestResolve_StoreOutageDegradesToEverythingEnabled(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	m.setPref(contextlayer.Preference{UserID: "u1", ContextID: "T", TenantKey: "acme", IsEnabled: false})
	m.listPrefsErr = errors.New("connection refused")
	r := newTestResolver(t, m)

	rc := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, []string{"G", "T"}, rc.AppliedContextIDs)

	// failed reads are not cached
	m.listPrefsErr = nil
	rc = r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, []string{"G"}, rc.AppliedContextIDs)
	assert.Equal(t, int32(2), m.listPrefsCalls.Load())
}

func TestResolve_ContextStoreOutage(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	m.listContextsErr = errors.New("connection refused")
	r := newTestResolver(t, m)

	rc := r.Resolve(context.Background(), "u1", "acme")
	assert.Empty(t, rc.AppliedContextIDs)
	assert.Equal(t, contextlayer.DefaultInstruction, rc.MergedText)
	assert.NotNil(t, rc.MergedOverrides)
}

func TestResolve_PanicReturnsFallback(t *testing.T) {
	m := newMockProvider(ctxG)
	m.panicOnList = true
	r := newTestResolver(t, m)

	var rc contextlayer.ResolvedContext
	require.NotPanics(t, func() {
		rc = r.Resolve(context.Background(), "u1", "acme")
	})
	assert.Equal(t, contextlayer.Fallback(), rc)
}

func TestResolve_IdempotentAndCached(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	r := newTestResolver(t, m)

	first := r.Resolve(context.Background(), "u1", "acme")
	second := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, first, second)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	assert.Equal(t, int32(1), m.listContextsCalls.Load())
	assert.Equal(t, int32(1), m.listPrefsCalls.Load())

	// contexts are shared across users, preferences are not
	r.Resolve(context.Background(), "u2", "acme")
	assert.Equal(t, int32(1), m.listContextsCalls.Load())
	assert.Equal(t, int32(2), m.listPrefsCalls.Load())
}

func TestResolve_ResultDoesNotAliasCache(t *testing.T) {
	withOverrides := ctxT
	withOverrides.Overrides = map[string]any{"tone": "casual"}
	r := newTestResolver(t, newMockProvider(ctxG, withOverrides))

	rc := r.Resolve(context.Background(), "u1", "acme")
	rc.MergedOverrides["tone"] = "changed"
	rc.Contexts[1].Overrides["tone"] = "changed"

	again := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, "casual", again.MergedOverrides["tone"])
	assert.Equal(t, "casual", again.Contexts[1].Overrides["tone"])
}

func TestResolve_CacheExpiry(t *testing.T) {
	m := newMockProvider(ctxG)
	r := New(m, Config{CacheTTL: 30 * time.Millisecond})
	t.Cleanup(r.Close)

	r.Resolve(context.Background(), "u1", "acme")
	require.Equal(t, int32(1), m.listContextsCalls.Load())

	assert.Eventually(t, func() bool {
		r.Resolve(context.Background(), "u1", "acme")
		return m.listContextsCalls.Load() > 1
	}, time.Second, 10*time.Millisecond)
}

func TestSetPreference_InvalidatesOnlyThatUser(t *testing.T) {
	other := ctxG
	other.TenantKey = "globex"
	m := newMockProvider(ctxG, ctxT, other)
	r := newTestResolver(t, m)
	ctx := context.Background()

	require.Equal(t, []string{"G", "T"}, r.Resolve(ctx, "u1", "acme").AppliedContextIDs)
	require.Equal(t, []string{"G", "T"}, r.Resolve(ctx, "u2", "acme").AppliedContextIDs)
	require.Equal(t, []string{"G"}, r.Resolve(ctx, "u1", "globex").AppliedContextIDs)
	prefCalls := m.listPrefsCalls.Load()
	ctxCalls := m.listContextsCalls.Load()

	assert.True(t, r.SetPreference(ctx, "u1", "T", "acme", false))
	assert.Equal(t, int32(1), m.insertCalls.Load(), "first write inserts")

	assert.Equal(t, []string{"G"}, r.Resolve(ctx, "u1", "acme").AppliedContextIDs,
		"visible immediately within the ttl")
	assert.Equal(t, prefCalls+1, m.listPrefsCalls.Load())

	r.Resolve(ctx, "u2", "acme")
	r.Resolve(ctx, "u1", "globex")
	assert.Equal(t, prefCalls+1, m.listPrefsCalls.Load(), "other entries stay cached")
	assert.Equal(t, ctxCalls, m.listContextsCalls.Load(), "context cache is untouched")

	assert.True(t, r.SetPreference(ctx, "u1", "T", "acme", true))
	assert.Equal(t, int32(1), m.updateCalls.Load(), "second write updates")
	assert.Equal(t, []string{"G", "T"}, r.Resolve(ctx, "u1", "acme").AppliedContextIDs)
}

func TestSetPreference_Failures(t *testing.T) {
	m := newMockProvider(ctxG)
	r := newTestResolver(t, m)
	ctx := context.Background()

	assert.False(t, r.SetPreference(ctx, "u1", "missing", "acme", false), "unknown context")

	m.getPrefErr = errors.New("connection refused")
	assert.False(t, r.SetPreference(ctx, "u1", "G", "acme", false))
	assert.Equal(t, int32(0), m.updateCalls.Load())

	m.getPrefErr = nil
	m.writeErr = errors.New("read-only transaction")
	assert.False(t, r.SetPreference(ctx, "u1", "G", "acme", false))
}

func TestSetPreference_FailureKeepsCache(t *testing.T) {
	m := newMockProvider(ctxG)
	r := newTestResolver(t, m)
	ctx := context.Background()

	r.Resolve(ctx, "u1", "acme")
	require.False(t, r.SetPreference(ctx, "u1", "missing", "acme", false))
	r.Resolve(ctx, "u1", "acme")
	assert.Equal(t, int32(1), m.listPrefsCalls.Load())
}

func TestSetPreferencesBulk_PartialFailure(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	r := newTestResolver(t, m)

	res := r.SetPreferencesBulk(context.Background(), "u1", "acme", []PreferenceUpdate{
		{ContextID: "T", Enabled: true},
		{ContextID: "bad-id", Enabled: true},
	})
	require.Len(t, res.Items, 2)
	assert.Equal(t, "T", res.Items[0].ContextID)
	assert.True(t, res.Items[0].Success)
	assert.NoError(t, res.Items[0].Err)
	assert.Equal(t, "bad-id", res.Items[1].ContextID)
	assert.False(t, res.Items[1].Success)
	assert.Error(t, res.Items[1].Err)
	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "bad-id")
}

func TestSetPreferencesBulk_AllSucceed(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	r := newTestResolver(t, m)
	ctx := context.Background()

	require.Len(t, r.Resolve(ctx, "u1", "acme").AppliedContextIDs, 2)

	res := r.SetPreferencesBulk(ctx, "u1", "acme", []PreferenceUpdate{
		{ContextID: "G", Enabled: false},
		{ContextID: "T", Enabled: false},
	})
	assert.True(t, res.Success)
	assert.NoError(t, res.Err)
	for _, item := range res.Items {
		assert.True(t, item.Success)
	}

	rc := r.Resolve(ctx, "u1", "acme")
	assert.Empty(t, rc.AppliedContextIDs)
	assert.Equal(t, contextlayer.DefaultInstruction, rc.MergedText)
}

func TestSetPreferencesBulk_Empty(t *testing.T) {
	r := newTestResolver(t, newMockProvider(ctxG))
	res := r.SetPreferencesBulk(context.Background(), "u1", "acme", nil)
	assert.True(t, res.Success)
	assert.Empty(t, res.Items)
	assert.NoError(t, res.Err)
}

func TestListPreferencesForDisplay(t *testing.T) {
	org := contextlayer.Context{ID: "O", TenantKey: "acme", Name: "Org", Description: "company voice", Scope: contextlayer.ScopeOrganization, Priority: 2}
	m := newMockProvider(ctxT, org, ctxG)
	m.setPref(contextlayer.Preference{UserID: "u1", ContextID: "O", TenantKey: "acme", IsEnabled: false})
	r := newTestResolver(t, m)

	got := r.ListPreferencesForDisplay(context.Background(), "u1", "acme")
	require.Len(t, got, 3)

	assert.Equal(t, []string{"G", "O", "T"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, DisplayPreference{
		ID:          "O",
		Name:        "Org",
		Description: "company voice",
		Scope:       "Organization",
		Priority:    2,
		IsEnabled:   false,
		Editable:    true,
		Licensed:    false,
	}, got[1])
	assert.True(t, got[0].IsEnabled)
	assert.Equal(t, "Global", got[0].Scope)
	assert.True(t, got[2].IsEnabled)
}

func TestInvalidateTenant(t *testing.T) {
	m := newMockProvider(ctxG)
	r := newTestResolver(t, m)
	ctx := context.Background()

	r.Resolve(ctx, "u1", "acme")
	r.InvalidateTenant("acme")
	r.Resolve(ctx, "u1", "acme")
	assert.Equal(t, int32(2), m.listContextsCalls.Load())
	assert.Equal(t, int32(1), m.listPrefsCalls.Load())

	r.InvalidateAll()
	r.Resolve(ctx, "u1", "acme")
	assert.Equal(t, int32(3), m.listContextsCalls.Load())
	assert.Equal(t, int32(2), m.listPrefsCalls.Load())
}

func TestResolve_Concurrent(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	r := newTestResolver(t, m)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user%d", i%4)
			for range 50 {
				rc := r.Resolve(context.Background(), user, "acme")
				assert.Len(t, rc.AppliedContextIDs, 2)
			}
		}()
	}
	wg.Wait()
}

func TestResolve_FetchesContextsAndPreferencesConcurrently(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	m.setPref(contextlayer.Preference{UserID: "u1", ContextID: "T", TenantKey: "acme", IsEnabled: false})
	b := newBarrier(2)
	m.beforeList = b.wait
	r := newTestResolver(t, m)

	rc := r.Resolve(context.Background(), "u1", "acme")
	assert.Equal(t, []string{"G"}, rc.AppliedContextIDs, "both reads must be in flight at once")
	assert.Equal(t, int32(2), b.arrived.Load())
}

func TestSetPreferencesBulk_WritesConcurrently(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	b := newBarrier(2)
	m.beforeGetPref = b.wait
	r := newTestResolver(t, m)

	res := r.SetPreferencesBulk(context.Background(), "u1", "acme", []PreferenceUpdate{
		{ContextID: "G", Enabled: false},
		{ContextID: "T", Enabled: false},
	})
	require.True(t, res.Success, "items must be written at the same time: %v", res.Err)
	assert.Equal(t, int32(2), b.arrived.Load())
	assert.Empty(t, r.Resolve(context.Background(), "u1", "acme").AppliedContextIDs)
}

// blockFirstListPreferences holds the first ListPreferences call after it
// has read its rows, until release is closed.
func blockFirstListPreferences(m *mockProvider) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	m.afterListPrefs = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	return entered, release
}

func TestSetPreference_InFlightReadDoesNotRestoreStaleRows(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	entered, release := blockFirstListPreferences(m)
	r := newTestResolver(t, m)
	ctx := context.Background()

	done := make(chan contextlayer.ResolvedContext, 1)
	go func() {
		done <- r.Resolve(ctx, "u1", "acme")
	}()
	<-entered

	require.True(t, r.SetPreference(ctx, "u1", "T", "acme", false))
	close(release)
	assert.Equal(t, []string{"G", "T"}, (<-done).AppliedContextIDs, "read started before the write")

	assert.Equal(t, []string{"G"}, r.Resolve(ctx, "u1", "acme").AppliedContextIDs)
	assert.Equal(t, []string{"G"}, r.Resolve(ctx, "u1", "acme").AppliedContextIDs)
	assert.Equal(t, int32(2), m.listPrefsCalls.Load(), "the fresh read is cached")
}

func TestInvalidateAll_InFlightReadDoesNotRestoreStaleRows(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	entered, release := blockFirstListPreferences(m)
	r := newTestResolver(t, m)
	ctx := context.Background()

	done := make(chan contextlayer.ResolvedContext, 1)
	go func() {
		done <- r.Resolve(ctx, "u1", "acme")
	}()
	<-entered

	m.setPref(contextlayer.Preference{UserID: "u1", ContextID: "G", TenantKey: "acme", IsEnabled: false})
	r.InvalidateAll()
	close(release)
	<-done

	assert.Equal(t, []string{"T"}, r.Resolve(ctx, "u1", "acme").AppliedContextIDs)
}

func TestSetPreference_OtherKeysStillCacheDuringWrites(t *testing.T) {
	m := newMockProvider(ctxG, ctxT)
	r := newTestResolver(t, m)
	ctx := context.Background()

	require.True(t, r.SetPreference(ctx, "u1", "T", "acme", false))
	r.Resolve(ctx, "u2", "acme")
	r.Resolve(ctx, "u2", "acme")
	assert.Equal(t, int32(1), m.listPrefsCalls.Load())
}
