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

package gateway

import "errors"

var (
	ErrAuthRequired        = errors.New("device requires authentication")
	ErrNoCredentials       = errors.New("no credentials available for device")
	ErrUnexpectedStatus    = errors.New("unexpected HTTP status")
	ErrMalformedResponse   = errors.New("malformed device response")
	ErrRPCError            = errors.New("device reported RPC error")
	ErrMethodNotSupported  = errors.New("method not in device method list")
	ErrUnsupportedLegacy   = errors.New("unsupported legacy action")
	ErrUnsupportedBulkVerb = errors.New("bulk actions are restricted to device-wide shelly verbs")
	ErrNoAddresses         = errors.New("no addresses provided")
	ErrStatusUnavailable   = errors.New("device status unavailable")
	ErrNotDigestChallenge  = errors.New("WWW-Authenticate is not a digest challenge")
	ErrBadChallenge        = errors.New("malformed digest challenge")
	ErrUnsupportedDigest   = errors.New("unsupported digest algorithm")
)
