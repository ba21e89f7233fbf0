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

// Outcome classifies a probed address.
type Outcome string

const (
	OutcomeDetected       Outcome = "detected"
	OutcomeUpdateAvail    Outcome = "update_available"
	OutcomeNoUpdateNeeded Outcome = "no_update_needed"
	OutcomeAuthRequired   Outcome = "auth_required"
	OutcomeNotADevice     Outcome = "not_a_device"
	OutcomeUnreachable    Outcome = "unreachable"
	OutcomeError          Outcome = "error"
)

// Positive reports whether the outcome represents a detected device.
func (o Outcome) Positive() bool {
	switch o {
	case OutcomeDetected, OutcomeUpdateAvail, OutcomeNoUpdateNeeded:
		return true
	default:
		return false
	}
}

// DiscoveryResult is the classification of one scanned address. Error and
// device fields are populated consistent with the outcome: unreachable
// carries an error message and no device identity.
type DiscoveryResult struct {
	Address         string        `json:"address"`
	Outcome         Outcome       `json:"outcome"`
	DeviceID        string        `json:"device_id,omitempty"`
	DeviceType      string        `json:"device_type,omitempty"`
	DeviceName      string        `json:"device_name,omitempty"`
	FirmwareVersion string        `json:"firmware_version,omitempty"`
	MACAddress      string        `json:"mac_address,omitempty"`
	AuthRequired    bool          `json:"auth_required,omitempty"`
	Generation      int           `json:"generation,omitempty"`
	ResponseTime    time.Duration `json:"response_time"`
	Error           string        `json:"error,omitempty"`
}
