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
	"strings"

	"github.com/plugfleet/plugfleet/pkg/models"
)

// NormalizeHardwareAddr canonicalizes a hardware address for use as a
// credential or auth-state key: uppercase hex with separators stripped.
// "aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF" and "aabbccddeeff" all normalize
// to "AABBCCDDEEFF". The wildcard sentinel passes through unchanged.
func NormalizeHardwareAddr(addr string) string {
	if addr == models.WildcardCredentialKey {
		return addr
	}

	replacer := strings.NewReplacer(":", "", "-", "", ".", "", " ", "")

	return strings.ToUpper(replacer.Replace(strings.TrimSpace(addr)))
}
