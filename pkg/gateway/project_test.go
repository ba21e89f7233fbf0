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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugfleet/plugfleet/pkg/models"
)

func TestProjectSwitch(t *testing.T) {
	comp := &models.Component{
		Type:   "switch",
		Status: json.RawMessage(`{"output":true,"apower":8.2,"voltage":231.5,"aenergy":{"total":1520.5},"source":"HTTP_in","temperature":{"tC":42.1,"tF":107.8}}`),
		Config: json.RawMessage(`{"name":"Desk","auto_on":false,"auto_off":true,"power_limit":2500}`),
	}

	view := ProjectSwitch(comp)

	assert.True(t, view.Output)
	require.NotNil(t, view.ActivePower)
	assert.InDelta(t, 8.2, *view.ActivePower, 0.001)
	require.NotNil(t, view.EnergyKWh)
	assert.InDelta(t, 1520.5, *view.EnergyKWh, 0.001)
	require.NotNil(t, view.TempC)
	assert.InDelta(t, 42.1, *view.TempC, 0.001)
	assert.Equal(t, "Desk", view.Name)
	assert.True(t, view.AutoOff)
	require.NotNil(t, view.PowerLimit)
	assert.InDelta(t, 2500, *view.PowerLimit, 0.001)

	// Missing readings stay nil, never zero.
	assert.Nil(t, view.Current)
	assert.Nil(t, view.Frequency)
}

func TestProjectCover_DefaultsToUnknownState(t *testing.T) {
	comp := &models.Component{Type: "cover", Status: json.RawMessage(`{}`)}

	view := ProjectCover(comp)
	assert.Equal(t, "unknown", view.State)
	assert.Nil(t, view.Position)
}

func TestProjectSystem_FallsBackToConfigIdentity(t *testing.T) {
	comp := &models.Component{
		Type:   "sys",
		Status: json.RawMessage(`{"uptime":3600,"available_updates":{"stable":{"version":"1.5.0"}}}`),
		Config: json.RawMessage(`{"device":{"name":"Hallway","mac":"A8032AB12345","fw_id":"20240101-fw"},"location":{"tz":"Europe/Sofia"}}`),
	}

	view := ProjectSystem(comp)

	assert.Equal(t, "Hallway", view.DeviceName)
	assert.Equal(t, "A8032AB12345", view.MACAddress)
	assert.Equal(t, "20240101-fw", view.FirmwareID)
	assert.Equal(t, "Europe/Sofia", view.Timezone)
	require.NotNil(t, view.Uptime)
	assert.InDelta(t, 3600, *view.Uptime, 0.001)
	require.Contains(t, view.AvailableUpdates, "stable")
}

func TestProjectEM_SplitsPhases(t *testing.T) {
	comp := &models.Component{
		Type: "em",
		Status: json.RawMessage(`{
			"a_act_power":100.5,"a_voltage":230.1,
			"b_act_power":200.25,
			"c_act_power":50,
			"total_act_power":350.75,"total_current":4.2}`),
		Config: json.RawMessage(`{"name":"Main feed","ct_type":"120A"}`),
	}

	view := ProjectEM(comp)

	require.NotNil(t, view.PhaseA.ActivePower)
	assert.InDelta(t, 100.5, *view.PhaseA.ActivePower, 0.001)
	require.NotNil(t, view.PhaseB.ActivePower)
	assert.InDelta(t, 200.25, *view.PhaseB.ActivePower, 0.001)
	assert.Nil(t, view.PhaseB.Voltage)
	require.NotNil(t, view.TotalActivePower)
	assert.InDelta(t, 350.75, *view.TotalActivePower, 0.001)
	assert.Equal(t, "Main feed", view.Name)
	assert.Equal(t, "120A", view.CTType)
}

func TestProjectWifi(t *testing.T) {
	comp := &models.Component{
		Type:   "wifi",
		Status: json.RawMessage(`{"sta_ip":"192.168.1.30","status":"got ip","ssid":"home","rssi":-58}`),
	}

	view := ProjectWifi(comp)

	assert.Equal(t, "192.168.1.30", view.StationIP)
	assert.Equal(t, "home", view.SSID)
	require.NotNil(t, view.RSSI)
	assert.InDelta(t, -58, *view.RSSI, 0.001)
}

func TestOptFloat_RejectsNonNumbers(t *testing.T) {
	raw := json.RawMessage(`{"s":"12","n":12,"b":true}`)

	assert.Nil(t, optFloat(raw, "s"))
	assert.Nil(t, optFloat(raw, "b"))
	assert.Nil(t, optFloat(raw, "missing"))
	require.NotNil(t, optFloat(raw, "n"))
	assert.InDelta(t, 12, *optFloat(raw, "n"), 0.001)
}
