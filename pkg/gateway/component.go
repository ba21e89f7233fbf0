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

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/plugfleet/plugfleet/pkg/models"
)

// apiPrefixes maps lowercase component types to the canonical capitalization
// used to build RPC method names. Unknown types fall back to title case.
var apiPrefixes = map[string]string{
	"switch":      "Switch",
	"input":       "Input",
	"cover":       "Cover",
	"sys":         "Sys",
	"cloud":       "Cloud",
	"shelly":      "Shelly",
	"schedule":    "Schedule",
	"webhook":     "Webhook",
	"kvs":         "KVS",
	"script":      "Script",
	"wifi":        "Wifi",
	"ws":          "WS",
	"eth":         "Eth",
	"http":        "HTTP",
	"ble":         "BLE",
	"bthome":      "BTHome",
	"mqtt":        "Mqtt",
	"knx":         "KNX",
	"zigbee":      "Zigbee",
	"matter":      "Matter",
	"modbus":      "Modbus",
	"dali":        "DALI",
	"em":          "EM",
	"em1":         "EM1",
	"pm1":         "PM1",
	"devicepower": "DevicePower",
	"ui":          "UI",
	"temperature": "Temperature",
	"humidity":    "Humidity",
	"voltmeter":   "Voltmeter",
	"smoke":       "Smoke",
	"light":       "Light",
	"rgb":         "RGB",
	"rgbw":        "RGBW",
	"cct":         "CCT",
}

// APIPrefix returns the RPC method prefix for a component type.
func APIPrefix(compType string) string {
	lower := strings.ToLower(compType)
	if prefix, ok := apiPrefixes[lower]; ok {
		return prefix
	}

	if lower == "" {
		return ""
	}

	return strings.ToUpper(lower[:1]) + lower[1:]
}

// methodPrefixes lists the method-name prefixes a component type accepts.
// System components also own the device-wide Shelly.* surface; zigbee
// additionally answers to the Shelly.Zigbee forms.
func methodPrefixes(compType string) []string {
	switch strings.ToLower(compType) {
	case "sys":
		return []string{"Sys.", "Shelly."}
	case "zigbee":
		return []string{"Zigbee.", "Shelly.Zigbee"}
	default:
		return []string{APIPrefix(compType) + "."}
	}
}

// AvailableActions computes the subset of the device's method list that this
// component type accepts.
func AvailableActions(compType string, methods []string) []string {
	prefixes := methodPrefixes(compType)

	var out []string

	for _, method := range methods {
		for _, prefix := range prefixes {
			if strings.HasPrefix(method, prefix) {
				out = append(out, method)
				break
			}
		}
	}

	return out
}

// CanPerformAction reports whether the component accepts the named action.
// System components additionally recognize Shelly.<name> forms for the
// device-wide verbs.
func CanPerformAction(comp *models.Component, action string) bool {
	want := APIPrefix(comp.Type) + "." + action

	for _, method := range comp.AvailableActions {
		if method == want {
			return true
		}

		if comp.Type == "sys" && method == "Shelly."+action {
			return true
		}
	}

	return false
}

// NewComponent materializes a component from its key plus raw status and
// config payloads. The key's type and id are parsed; malformed keys fall back
// to the generic passthrough variant.
func NewComponent(key string, status, config json.RawMessage) models.Component {
	compType, id, err := models.ParseComponentKey(key)
	if err != nil {
		return models.Component{Key: key, Type: "generic", Status: status, Config: config}
	}

	return models.Component{
		Key:    key,
		Type:   compType,
		ID:     id,
		Status: status,
		Config: config,
	}
}

// TotalPower reports the device's total real power draw: the sum of switch
// active powers, 3-phase meter total_act_power and 1-phase meter act_power,
// with missing values treated as zero.
func TotalPower(snapshot *models.DeviceSnapshot) float64 {
	var total float64

	for _, comp := range snapshot.Components {
		switch comp.Type {
		case "switch":
			total += gjson.GetBytes(comp.Status, "apower").Float()
		case "em":
			total += gjson.GetBytes(comp.Status, "total_act_power").Float()
		case "em1":
			total += gjson.GetBytes(comp.Status, "act_power").Float()
		}
	}

	return total
}
