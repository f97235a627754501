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

// Package ownercache is a small in-process TTL cache whose entries may be
// tagged with an owner. A lookup that names a different owner than the one
// recorded on the entry is treated as a miss, so values cached for one user
// are never handed to another.
//
// Expiry is fixed: reading an entry does not extend its lifetime, and each
// Set restarts the clock for that key only.
package ownercache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type entry[V any] struct {
	value V
	owner string
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	cache *ttlcache.Cache[string, entry[V]]
}

// New creates a cache and starts its expiry loop. Call Close when done.
func New[V any](ttl time.Duration) *Cache[V] {
	c := ttlcache.New(
		ttlcache.WithTTL[string, entry[V]](ttl),
		ttlcache.WithDisableTouchOnHit[string, entry[V]](),
	)
	go c.Start()
	return &Cache[V]{cache: c}
}

// Close stops the expiry loop. The cache remains usable.
func (c *Cache[V]) Close() {
	c.cache.Stop()
}

// Get returns the value stored under key. An empty owner skips the owner
// check; otherwise an entry tagged with a different owner is a miss.
func (c *Cache[V]) Get(key, owner string) (V, bool) {
	var zero V

	item := c.cache.Get(key)
	if item == nil || item.IsExpired() {
		// Only removes entries that are past their TTL, so a concurrent
		// Set of the same key survives.
		c.cache.DeleteExpired()
		return zero, false
	}

	e := item.Value()
	if owner != "" && e.owner != "" && e.owner != owner {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing whatever was there.
func (c *Cache[V]) Set(key string, value V, owner string) {
	c.cache.Set(key, entry[V]{value: value, owner: owner}, ttlcache.DefaultTTL)
}

func (c *Cache[V]) Delete(key string) {
	c.cache.Delete(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.cache.DeleteAll()
}

func (c *Cache[V]) Len() int {
	return c.cache.Len()
}
