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

package ownercache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := New[[]string](time.Minute)
	t.Cleanup(c.Close)

	_, ok := c.Get("missing", "")
	assert.False(t, ok)

	c.Set("k", []string{"a"}, "")
	v, ok := c.Get("k", "")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	c.Set("k", []string{"b"}, "")
	v, ok = c.Get("k", "")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, v, "set overwrites unconditionally")
}

func TestCache_OwnerIsolation(t *testing.T) {
	c := New[string](time.Minute)
	t.Cleanup(c.Close)

	c.Set("prefs:userA:acme", "secret", "userA")

	_, ok := c.Get("prefs:userA:acme", "userB")
	assert.False(t, ok, "another owner must never see the entry")

	v, ok := c.Get("prefs:userA:acme", "userA")
	require.True(t, ok)
	assert.Equal(t, "secret", v)

	// an owner mismatch is a miss, not an eviction
	_, ok = c.Get("prefs:userA:acme", "userB")
	assert.False(t, ok)
	_, ok = c.Get("prefs:userA:acme", "userA")
	assert.True(t, ok)
}

func TestCache_UntaggedEntries(t *testing.T) {
	c := New[int](time.Minute)
	t.Cleanup(c.Close)

	c.Set("contexts:acme", 3, "")

	v, ok := c.Get("contexts:acme", "anyone")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCache_Expiry(t *testing.T) {
	c := New[string](30 * time.Millisecond)
	t.Cleanup(c.Close)

	c.Set("k", "v", "")
	_, ok := c.Get("k", "")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k", "")
		return !ok
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 5*time.Millisecond, "expired entries are removed")
}

func TestCache_NoSlidingExpiry(t *testing.T) {
	ttl := 80 * time.Millisecond
	c := New[string](ttl)
	t.Cleanup(c.Close)

	c.Set("k", "v", "")
	start := time.Now()

	// Keep reading well past the TTL; reads must not keep the entry alive.
	for time.Since(start) < 3*ttl {
		if _, ok := c.Get("k", ""); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("entry outlived its ttl while being read")
}

func TestCache_SetResetsOnlyThatKey(t *testing.T) {
	ttl := 100 * time.Millisecond
	c := New[string](ttl)
	t.Cleanup(c.Close)

	c.Set("a", "1", "")
	c.Set("b", "1", "")
	time.Sleep(ttl / 2)
	c.Set("a", "2", "")

	assert.Eventually(t, func() bool {
		_, ok := c.Get("b", "")
		return !ok
	}, time.Second, 5*time.Millisecond)

	v, ok := c.Get("a", "")
	if ok {
		assert.Equal(t, "2", v)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string](time.Minute)
	t.Cleanup(c.Close)

	c.Set("a", "1", "")
	c.Set("b", "2", "owner")
	c.Delete("a")

	_, ok := c.Get("a", "")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b", "owner")
	assert.False(t, ok)
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](time.Minute)
	t.Cleanup(c.Close)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := fmt.Sprintf("user%d", w)
			key := "prefs:" + owner
			for i := range 200 {
				c.Set(key, i, owner)
				v, ok := c.Get(key, owner)
				if assert.True(t, ok) {
					assert.Equal(t, i, v)
				}
				_, ok = c.Get(key, "intruder")
				assert.False(t, ok)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}
