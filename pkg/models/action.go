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

// ActionResult is the per-device outcome of a single verb. Failures carry
// Error and a summary Message; successes may carry the raw device response
// under Data.
type ActionResult struct {
	Address      string    `json:"address"`
	Verb         string    `json:"verb"`
	ComponentKey string    `json:"component_key,omitempty"`
	Success      bool      `json:"success"`
	Message      string    `json:"message,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	Data         any       `json:"data,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BulkResult aggregates a fan-out. Results arrive in completion order; each
// entry carries its address so callers may re-key.
type BulkResult struct {
	Verb      string         `json:"verb"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []ActionResult `json:"results"`
	Duration  time.Duration  `json:"duration"`
}

// ConfigExport is the nested structure produced by bulk config export.
type ConfigExport struct {
	Metadata ExportMetadata          `json:"export_metadata"`
	Devices  map[string]DeviceExport `json:"devices"`
}

// ExportMetadata describes one export run. Timestamp is ISO-8601 UTC.
type ExportMetadata struct {
	Timestamp      string   `json:"timestamp"`
	TotalDevices   int      `json:"total_devices"`
	ComponentTypes []string `json:"component_types"`
}

// DeviceExport holds one device's exported component configs.
type DeviceExport struct {
	DeviceInfo DeviceInfo                 `json:"device_info"`
	Components map[string]ComponentExport `json:"components"`
}

// ComponentExport is one component's config extraction result.
type ComponentExport struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Config  any    `json:"config,omitempty"`
	Error   string `json:"error,omitempty"`
}
