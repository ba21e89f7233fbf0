/*
 * Copyright 2026 Plugfleet Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package creds

import (
	"sync"
	"time"
)

// DefaultAuthStateTTL is how long a "this device required auth" observation
// is trusted before it must be re-learned.
const DefaultAuthStateTTL = time.Hour

// AuthStateCache remembers which keys (device address or hardware address)
// answered with a 401 challenge recently. Entries expire after the TTL and
// expired entries are removed on access. Safe for concurrent use.
type AuthStateCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewAuthStateCache builds a cache. A non-positive ttl selects the default.
func NewAuthStateCache(ttl time.Duration) *AuthStateCache {
	if ttl <= 0 {
		ttl = DefaultAuthStateTTL
	}

	return &AuthStateCache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkRequired records that the key required authentication, refreshing the
// timestamp if already present.
func (c *AuthStateCache) MarkRequired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = c.now()
}

// Requires reports whether the key required auth within the TTL. A stale
// entry is evicted and reported as not required.
func (c *AuthStateCache) Requires(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen, ok := c.entries[key]
	if !ok {
		return false
	}

	if c.now().Sub(seen) > c.ttl {
		delete(c.entries, key)
		return false
	}

	return true
}

// Forget drops the key regardless of age.
func (c *AuthStateCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len reports the live entry count, evicting stale entries along the way.
func (c *AuthStateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	for key, seen := range c.entries {
		if now.Sub(seen) > c.ttl {
			delete(c.entries, key)
		}
	}

	return len(c.entries)
}
