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
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/plugfleet/plugfleet/pkg/models"
)

// Canonical action names for legacy component families. The gateway maps
// these onto fixed HTTP GET endpoints; they are never gated on a method list.
var (
	legacyRelayActions = []string{"Legacy.Toggle", "Legacy.TurnOn", "Legacy.TurnOff"}
	legacyCoverActions = []string{"Legacy.Open", "Legacy.Close", "Legacy.Stop"}
	legacyInputActions = []string{
		"Legacy.InputMomentary", "Legacy.InputToggle", "Legacy.InputEdge",
		"Legacy.InputDetached", "Legacy.InputActivation", "Legacy.InputMomentaryRelease",
		"Legacy.InputReverse", "Legacy.InputNormal",
	}
)

// MapLegacyComponents translates a legacy device's three payloads (shelly,
// status, settings) into the component shape used by the modern path. The
// mapping is pure: equal payloads produce equal component lists.
func MapLegacyComponents(shelly, status, settings json.RawMessage) []models.Component {
	components := []models.Component{mapLegacySys(shelly, status, settings)}

	if wifi := mapLegacyWifi(status); wifi != nil {
		components = append(components, *wifi)
	}

	if cloud := mapLegacyCloud(status, settings); cloud != nil {
		components = append(components, *cloud)
	}

	if mqtt := mapLegacyMQTT(status, settings); mqtt != nil {
		components = append(components, *mqtt)
	}

	components = append(components, mapLegacyRelays(status, settings)...)
	components = append(components, mapLegacyInputs(status)...)
	components = append(components, mapLegacyRollers(status, settings)...)

	return components
}

func mapLegacySys(shelly, status, settings json.RawMessage) models.Component {
	statusMap := map[string]any{
		"mac":      gjson.GetBytes(shelly, "mac").String(),
		"fw_id":    gjson.GetBytes(shelly, "fw").String(),
		"uptime":   gjson.GetBytes(status, "uptime").Float(),
		"ram_size": gjson.GetBytes(status, "ram_total").Float(),
		"ram_free": gjson.GetBytes(status, "ram_free").Float(),
		"fs_size":  gjson.GetBytes(status, "fs_size").Float(),
		"fs_free":  gjson.GetBytes(status, "fs_free").Float(),
	}

	if updates := legacyAvailableUpdates(status); len(updates) > 0 {
		statusMap["available_updates"] = updates
	}

	name := gjson.GetBytes(settings, "device.name").String()
	if name == "" {
		name = gjson.GetBytes(settings, "name").String()
	}

	configMap := map[string]any{
		"device": map[string]any{
			"name": name,
			"mac":  gjson.GetBytes(shelly, "mac").String(),
		},
	}

	if tz := gjson.GetBytes(settings, "timezone").String(); tz != "" {
		configMap["location"] = map[string]any{"tz": tz}
	}

	comp := NewComponent("sys", mustRaw(statusMap), mustRaw(configMap))
	comp.Attrs = legacyAttrs("system", nil, nil)
	comp.Attrs["legacy_device_id"] = gjson.GetBytes(shelly, "id").String()
	comp.Attrs["legacy_device_type"] = gjson.GetBytes(shelly, "type").String()

	return comp
}

// legacyAvailableUpdates derives the modern available_updates map from the
// legacy update block. has_update wins when present; otherwise a version
// difference marks a pending stable update.
func legacyAvailableUpdates(status json.RawMessage) map[string]any {
	updates := make(map[string]any)

	update := gjson.GetBytes(status, "update")
	newVersion := update.Get("new_version").String()
	oldVersion := update.Get("old_version").String()

	hasUpdate := update.Get("has_update").Bool() || gjson.GetBytes(status, "has_update").Bool()
	if !hasUpdate && newVersion != "" && oldVersion != "" && newVersion != oldVersion {
		hasUpdate = true
	}

	if hasUpdate {
		stable := map[string]any{}
		if newVersion != "" {
			stable["version"] = newVersion
		}

		updates["stable"] = stable
	}

	if beta := update.Get("beta_version").String(); beta != "" {
		updates["beta"] = map[string]any{"version": beta}
	}

	return updates
}

func mapLegacyWifi(status json.RawMessage) *models.Component {
	sta := gjson.GetBytes(status, "wifi_sta")
	if !sta.Exists() {
		return nil
	}

	statusMap := map[string]any{
		"sta_ip": sta.Get("ip").String(),
		"ssid":   sta.Get("ssid").String(),
		"rssi":   sta.Get("rssi").Float(),
	}

	if sta.Get("connected").Bool() {
		statusMap["status"] = "got ip"
	} else {
		statusMap["status"] = "disconnected"
	}

	comp := NewComponent("wifi", mustRaw(statusMap), nil)
	comp.Attrs = legacyAttrs("wifi", nil, nil)

	return &comp
}

func mapLegacyCloud(status, settings json.RawMessage) *models.Component {
	statusBlock := gjson.GetBytes(status, "cloud")
	settingsBlock := gjson.GetBytes(settings, "cloud")

	if !statusBlock.Exists() && !settingsBlock.Exists() {
		return nil
	}

	statusMap := map[string]any{"connected": statusBlock.Get("connected").Bool()}
	configMap := map[string]any{"enable": settingsBlock.Get("enabled").Bool()}

	if server := settingsBlock.Get("server").String(); server != "" {
		configMap["server"] = server
	}

	comp := NewComponent("cloud", mustRaw(statusMap), mustRaw(configMap))
	comp.Attrs = legacyAttrs("cloud", nil, nil)

	return &comp
}

func mapLegacyMQTT(status, settings json.RawMessage) *models.Component {
	statusBlock := gjson.GetBytes(status, "mqtt")
	settingsBlock := gjson.GetBytes(settings, "mqtt")

	if !statusBlock.Exists() && !settingsBlock.Exists() {
		return nil
	}

	statusMap := map[string]any{"connected": statusBlock.Get("connected").Bool()}
	configMap := map[string]any{
		"enable":    settingsBlock.Get("enable").Bool(),
		"server":    settingsBlock.Get("server").String(),
		"user":      settingsBlock.Get("user").String(),
		"client_id": settingsBlock.Get("id").String(),
	}

	comp := NewComponent("mqtt", mustRaw(statusMap), mustRaw(configMap))
	comp.Attrs = legacyAttrs("mqtt", nil, nil)

	return &comp
}

func mapLegacyRelays(status, settings json.RawMessage) []models.Component {
	relays := gjson.GetBytes(status, "relays").Array()
	meters := gjson.GetBytes(status, "meters").Array()
	relaySettings := gjson.GetBytes(settings, "relays").Array()

	var components []models.Component

	for i, relay := range relays {
		statusMap := map[string]any{
			"output": relay.Get("ison").Bool(),
			"source": relay.Get("source").String(),
		}

		if i < len(meters) {
			statusMap["apower"] = meters[i].Get("power").Float()
			statusMap["aenergy"] = map[string]any{"total": meters[i].Get("total").Float()}
		}

		if tempC, ok := legacyRelayTemperature(relay, status); ok {
			statusMap["temperature"] = map[string]any{
				"tC": tempC,
				"tF": tempC*9/5 + 32,
			}
		}

		configMap := map[string]any{}

		if i < len(relaySettings) {
			configMap["name"] = relaySettings[i].Get("name").String()
			configMap["auto_on"] = relaySettings[i].Get("auto_on").Bool()
			configMap["auto_off"] = relaySettings[i].Get("auto_off").Bool()
		}

		comp := NewComponent(fmt.Sprintf("switch:%d", i), mustRaw(statusMap), mustRaw(configMap))
		comp.Attrs = legacyAttrs("relay", &i, legacyRelayActions)
		comp.AvailableActions = legacyRelayActions

		components = append(components, comp)
	}

	return components
}

// legacyRelayTemperature picks the relay temperature: the relay's own numeric
// reading wins, then the device-wide tmp block, then the bare temperature
// field.
func legacyRelayTemperature(relay gjson.Result, status json.RawMessage) (float64, bool) {
	if t := relay.Get("temperature"); t.Exists() && t.Type == gjson.Number {
		return t.Float(), true
	}

	if t := gjson.GetBytes(status, "tmp.tC"); t.Exists() && t.Type == gjson.Number {
		return t.Float(), true
	}

	if t := gjson.GetBytes(status, "temperature"); t.Exists() && t.Type == gjson.Number {
		return t.Float(), true
	}

	return 0, false
}

func mapLegacyInputs(status json.RawMessage) []models.Component {
	inputs := gjson.GetBytes(status, "inputs").Array()
	if len(inputs) == 0 {
		inputs = gjson.GetBytes(status, "input").Array()
	}

	var components []models.Component

	for i, input := range inputs {
		statusMap := map[string]any{
			"state": input.Get("input").Int() != 0,
		}

		if event := input.Get("event").String(); event != "" {
			statusMap["event"] = event
		}

		comp := NewComponent(fmt.Sprintf("input:%d", i), mustRaw(statusMap), nil)
		comp.Attrs = legacyAttrs("input", &i, legacyInputActions)
		comp.AvailableActions = legacyInputActions

		components = append(components, comp)
	}

	return components
}

func mapLegacyRollers(status, settings json.RawMessage) []models.Component {
	rollers := gjson.GetBytes(status, "rollers").Array()
	rollerSettings := gjson.GetBytes(settings, "rollers").Array()

	var components []models.Component

	for i, roller := range rollers {
		statusMap := map[string]any{
			"state":          legacyRollerState(roller.Get("state").String()),
			"last_direction": roller.Get("last_direction").String(),
			"apower":         roller.Get("power").Float(),
			"source":         roller.Get("source").String(),
		}

		if pos := roller.Get("current_pos"); pos.Exists() && pos.Type == gjson.Number {
			statusMap["current_pos"] = pos.Float()
		}

		configMap := map[string]any{}

		if i < len(rollerSettings) {
			configMap["name"] = rollerSettings[i].Get("name").String()
			configMap["maxtime_open"] = rollerSettings[i].Get("maxtime_open").Float()
			configMap["maxtime_close"] = rollerSettings[i].Get("maxtime_close").Float()
		}

		comp := NewComponent(fmt.Sprintf("cover:%d", i), mustRaw(statusMap), mustRaw(configMap))
		comp.Attrs = legacyAttrs("roller", &i, legacyCoverActions)
		comp.AvailableActions = legacyCoverActions

		components = append(components, comp)
	}

	return components
}

// legacyRollerState maps gen-legacy roller states onto the modern cover state
// enum.
func legacyRollerState(state string) string {
	switch state {
	case "open":
		return "opening"
	case "close":
		return "closing"
	case "stop":
		return "stopped"
	case "":
		return "unknown"
	default:
		return state
	}
}

func legacyAttrs(component string, id *int, actions []string) map[string]any {
	attrs := map[string]any{"legacy_component": component}

	if id != nil {
		attrs["legacy_id"] = *id
	}

	if len(actions) > 0 {
		attrs["legacy_actions"] = actions
	}

	return attrs
}

func mustRaw(m map[string]any) json.RawMessage {
	data, err := json.Marshal(m)
	if err != nil {
		// Maps of plain JSON values always marshal.
		return json.RawMessage("{}")
	}

	return data
}
