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

import (
	"errors"
	"fmt"
)

// ErrorKind classifies device operation failures by cause, not by Go type.
type ErrorKind string

const (
	ErrKindValidation    ErrorKind = "validation"
	ErrKindUnreachable   ErrorKind = "unreachable"
	ErrKindAuthRequired  ErrorKind = "auth_required"
	ErrKindCommunication ErrorKind = "communication"
	ErrKindUnsupported   ErrorKind = "unsupported_action"
	ErrKindBulk          ErrorKind = "bulk_operation"
)

// DeviceError is a typed per-device failure. Transports never let raw network
// errors escape the gateway; they are wrapped here.
type DeviceError struct {
	Kind    ErrorKind
	Address string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("%s: %s: %v", e.Address, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError wraps err with a kind and device address.
func NewDeviceError(kind ErrorKind, address string, err error) *DeviceError {
	return &DeviceError{Kind: kind, Address: address, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Unknown errors report
// communication failures.
func KindOf(err error) ErrorKind {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Kind
	}

	return ErrKindCommunication
}
