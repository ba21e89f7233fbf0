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

package models

import "time"

// WildcardCredentialKey matches any device when no per-device entry exists.
const WildcardCredentialKey = "*"

// Credential is a stored device login, keyed by normalized hardware address
// (uppercase hex, no separators) or the wildcard.
type Credential struct {
	Key        string    `json:"key"`
	Username   string    `json:"username"`
	Password   string    `json:"password"`
	LastSeenIP string    `json:"last_seen_ip,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}
