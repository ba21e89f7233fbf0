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

// Package models provides the data models shared by the scanner, the device
// gateway and the bulk orchestrator.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errBadComponentKey = errors.New("invalid component key")

// Component is one addressable functional unit of a device: a switch channel,
// an input, the system facet, an energy meter phase group and so on. Keys are
// either "type:id" (switch:0) or a bare type (sys, cloud, zigbee).
type Component struct {
	Key              string          `json:"key"`
	Type             string          `json:"type"`
	ID               *int            `json:"id,omitempty"`
	Status           json.RawMessage `json:"status,omitempty"`
	Config           json.RawMessage `json:"config,omitempty"`
	Attrs            map[string]any  `json:"attrs,omitempty"`
	AvailableActions []string        `json:"available_actions,omitempty"`
}

// ParseComponentKey splits a component key into its type and optional integer
// id. Keys without a colon have no id.
func ParseComponentKey(key string) (compType string, id *int, err error) {
	if key == "" {
		return "", nil, fmt.Errorf("%w: empty key", errBadComponentKey)
	}

	typePart, idPart, found := strings.Cut(key, ":")
	if !found {
		return strings.ToLower(typePart), nil, nil
	}

	n, err := strconv.Atoi(idPart)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q has non-integer id", errBadComponentKey, key)
	}

	return strings.ToLower(typePart), &n, nil
}

// DeviceInfo is device-level identity reported by Shelly.GetDeviceInfo or the
// legacy /shelly endpoint.
type DeviceInfo struct {
	Name            string `json:"device_name"`
	Model           string `json:"device_type"`
	FirmwareVersion string `json:"firmware_version"`
	MACAddress      string `json:"mac_address"`
	AppName         string `json:"app_name"`
	Generation      int    `json:"generation"`
	AuthRequired    bool   `json:"auth_required,omitempty"`
}

// DeviceSnapshot is the full view of one device at one instant: its
// components plus device-level metadata. Snapshots are per call and never
// persisted.
type DeviceSnapshot struct {
	Address     string      `json:"address"`
	Info        DeviceInfo  `json:"device_info"`
	Components  []Component `json:"components"`
	ConfigRev   int         `json:"config_revision"`
	Methods     []string    `json:"methods,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Component returns the component with the given key, or nil.
func (s *DeviceSnapshot) Component(key string) *Component {
	for i := range s.Components {
		if s.Components[i].Key == key {
			return &s.Components[i]
		}
	}

	return nil
}

// ComponentsByType returns all components whose type matches (case-insensitive).
func (s *DeviceSnapshot) ComponentsByType(compType string) []Component {
	want := strings.ToLower(compType)

	var out []Component

	for _, c := range s.Components {
		if c.Type == want {
			out = append(out, c)
		}
	}

	return out
}
