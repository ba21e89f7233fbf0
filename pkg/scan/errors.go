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

package scan

import "errors"

var (
	ErrNoTargets      = errors.New("no targets provided and mDNS discovery disabled")
	ErrInvalidTarget  = errors.New("invalid target")
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	ErrRangeReversed  = errors.New("range start is after range end")
)
