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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	store := creds.NewFileStore(t.TempDir()+"/creds.json", "pass", logger.NewTestLogger())

	return New(store, creds.NewAuthStateCache(0), logger.NewTestLogger())
}

// modernDevice fakes a Gen-modern device: JSON-RPC on /rpc, nothing else.
type modernDevice struct {
	t        *testing.T
	requests int32
	handlers map[string]func(params json.RawMessage) (any, bool)
}

func (d *modernDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&d.requests, 1)

	if r.URL.Path != "/rpc" {
		http.NotFound(w, r)
		return
	}

	var req struct {
		ID     string          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}

	require.NoError(d.t, json.NewDecoder(r.Body).Decode(&req))

	handler, ok := d.handlers[req.Method]
	if !ok {
		_, _ = w.Write([]byte(`{"id":"1","error":{"code":404,"message":"No handler for ` + req.Method + `"}}`))
		return
	}

	result, ok := handler(req.Params)
	if !ok {
		_, _ = w.Write([]byte(`{"id":"1","error":{"code":-103,"message":"Invalid params"}}`))
		return
	}

	payload, err := json.Marshal(map[string]any{"id": req.ID, "result": result})
	require.NoError(d.t, err)

	_, _ = w.Write(payload)
}

func plusDeviceInfo() map[string]any {
	return map[string]any{
		"name":  "Office Plug",
		"id":    "shellyplus1pm-a8032ab12345",
		"mac":   "A8032AB12345",
		"model": "SNSW-001P16EU",
		"gen":   2,
		"fw_id": "20231219-133953/1.1.0-g34b5d4f",
		"ver":   "1.1.0",
		"app":   "Plus1PM",
	}
}

func TestDiscover_ModernWithUpdate(t *testing.T) {
	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Shelly.GetDeviceInfo": func(json.RawMessage) (any, bool) {
			return plusDeviceInfo(), true
		},
		"Shelly.CheckForUpdate": func(json.RawMessage) (any, bool) {
			return map[string]any{"stable": map[string]any{"version": "1.2.3"}}, true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.Discover(context.Background(), deviceAddr(srv))
	assert.Equal(t, models.OutcomeUpdateAvail, result.Outcome)
	assert.Equal(t, "shellyplus1pm-a8032ab12345", result.DeviceID)
	assert.Equal(t, "SNSW-001P16EU", result.DeviceType)
	assert.Equal(t, "Office Plug", result.DeviceName)
	assert.Equal(t, "1.1.0", result.FirmwareVersion)
	assert.Equal(t, "A8032AB12345", result.MACAddress)
	assert.Equal(t, 2, result.Generation)
	assert.Positive(t, result.ResponseTime)
}

func TestDiscover_ModernNoUpdate(t *testing.T) {
	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Shelly.GetDeviceInfo": func(json.RawMessage) (any, bool) {
			return plusDeviceInfo(), true
		},
		"Shelly.CheckForUpdate": func(json.RawMessage) (any, bool) {
			return map[string]any{}, true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.Discover(context.Background(), deviceAddr(srv))
	assert.Equal(t, models.OutcomeNoUpdateNeeded, result.Outcome)
}

func TestDiscover_UpdateCheckFailureStaysDetected(t *testing.T) {
	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Shelly.GetDeviceInfo": func(json.RawMessage) (any, bool) {
			return plusDeviceInfo(), true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.Discover(context.Background(), deviceAddr(srv))
	assert.Equal(t, models.OutcomeDetected, result.Outcome)
}

// legacyDevice fakes a Gen-legacy device: HTTP GET endpoints, no /rpc.
type legacyDevice struct {
	shelly   string
	status   string
	settings string
	actions  map[string]string // "path?query" -> response body

	mu   sync.Mutex
	hits []string
}

func (d *legacyDevice) hitList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.hits...)
}

func (d *legacyDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	d.mu.Lock()
	d.hits = append(d.hits, key)
	d.mu.Unlock()

	switch r.URL.Path {
	case "/shelly":
		_, _ = w.Write([]byte(d.shelly))
	case "/status":
		_, _ = w.Write([]byte(d.status))
	case "/settings":
		_, _ = w.Write([]byte(d.settings))
	default:
		if body, ok := d.actions[key]; ok {
			_, _ = w.Write([]byte(body))
			return
		}

		http.NotFound(w, r)
	}
}

func hallwayDimmer() *legacyDevice {
	return &legacyDevice{
		shelly: `{"type":"SHSW-25","mac":"E868E7123456","auth":false,"fw":"20230913-112003/v1.14.0",` +
			`"longid":1,"id":"shellyswitch25-E868E7123456"}`,
		status: `{"wifi_sta":{"connected":true,"ssid":"home","ip":"192.168.1.30","rssi":-58},` +
			`"cloud":{"enabled":true,"connected":true},` +
			`"relays":[{"ison":true,"source":"http"},{"ison":false,"source":"input"}],` +
			`"meters":[{"power":35.5,"total":128000},{"power":0,"total":0}],` +
			`"inputs":[{"input":1,"event":"S"},{"input":0,"event":""}],` +
			`"temperature":41.2,"uptime":86400,"ram_total":51272,"ram_free":38904,` +
			`"update":{"status":"pending","has_update":true,"new_version":"v1.14.1","old_version":"v1.14.0"}}`,
		settings: `{"device":{"name":"Hallway"},"timezone":"Europe/Sofia",` +
			`"cloud":{"enabled":true},` +
			`"relays":[{"name":"Main","auto_on":0,"auto_off":0},{"name":"Spare","auto_on":0,"auto_off":0}]}`,
		actions: map[string]string{
			"/relay/0?turn=on":     `{"ison":true,"has_timer":false}`,
			"/relay/1?turn=toggle": `{"ison":true,"has_timer":false}`,
			"/reboot":              `{"ok":true}`,
			"/ota?update=true":     `{"status":"updating"}`,
		},
	}
}

func TestDiscover_LegacyFallback(t *testing.T) {
	srv := httptest.NewServer(hallwayDimmer())
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.Discover(context.Background(), deviceAddr(srv))
	assert.Equal(t, models.OutcomeUpdateAvail, result.Outcome)
	assert.Equal(t, "SHSW-25", result.DeviceType)
	assert.Equal(t, "Hallway", result.DeviceName)
	assert.Equal(t, "E868E7123456", result.MACAddress)
	assert.Equal(t, 1, result.Generation)
	assert.False(t, result.AuthRequired)
}

func TestDiscover_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	gw := newTestGateway(t)

	result := gw.Discover(context.Background(), deviceAddr(srv))
	assert.Equal(t, models.OutcomeUnreachable, result.Outcome)
	assert.NotEmpty(t, result.Error)
}

func modernStatusHandlers(t *testing.T) map[string]func(json.RawMessage) (any, bool) {
	t.Helper()

	return map[string]func(json.RawMessage) (any, bool){
		"Shelly.GetDeviceInfo": func(json.RawMessage) (any, bool) {
			return plusDeviceInfo(), true
		},
		"Shelly.GetComponents": func(params json.RawMessage) (any, bool) {
			var p struct {
				Offset *int `json:"offset"`
			}

			require.NoError(t, json.Unmarshal(params, &p))
			require.NotNil(t, p.Offset)

			return map[string]any{
				"components": []map[string]any{
					{
						"key":    "switch:0",
						"status": map[string]any{"id": 0, "output": true, "apower": 35.5},
						"config": map[string]any{"id": 0, "name": "Desk"},
					},
					{
						"key":    "sys",
						"status": map[string]any{"uptime": 9000},
						"config": map[string]any{"device": map[string]any{"name": "Office Plug"}},
					},
				},
				"cfg_rev": 7,
				"offset":  0,
				"total":   2,
			}, true
		},
		"Shelly.GetStatus": func(json.RawMessage) (any, bool) {
			return map[string]any{
				"switch:0": map[string]any{"id": 0, "output": true, "apower": 35.5},
				"sys":      map[string]any{"uptime": 9000},
				"zigbee":   map[string]any{"network_state": "joined"},
			}, true
		},
		"Shelly.ListMethods": func(json.RawMessage) (any, bool) {
			return map[string]any{"methods": []string{
				"Shelly.GetStatus", "Shelly.Reboot", "Switch.Set", "Switch.Toggle",
				"Switch.GetStatus", "Sys.GetConfig", "Zigbee.GetStatus",
			}}, true
		},
	}
}

func TestGetFullStatus_Modern(t *testing.T) {
	device := &modernDevice{t: t, handlers: modernStatusHandlers(t)}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	snapshot, err := gw.GetFullStatus(context.Background(), deviceAddr(srv))
	require.NoError(t, err)

	assert.Equal(t, "Office Plug", snapshot.Info.Name)
	assert.Equal(t, 7, snapshot.ConfigRev)
	require.Len(t, snapshot.Components, 3)

	sw := snapshot.Component("switch:0")
	require.NotNil(t, sw)
	assert.Equal(t, "switch", sw.Type)
	assert.ElementsMatch(t, []string{"Switch.Set", "Switch.Toggle", "Switch.GetStatus"}, sw.AvailableActions)

	// zigbee appears only in GetStatus and is synthesized into the list.
	zb := snapshot.Component("zigbee")
	require.NotNil(t, zb)
	assert.JSONEq(t, `{"network_state":"joined"}`, string(zb.Status))

	sys := snapshot.Component("sys")
	require.NotNil(t, sys)
	assert.Contains(t, sys.AvailableActions, "Shelly.Reboot")
	assert.Contains(t, sys.AvailableActions, "Sys.GetConfig")
}

func TestGetFullStatus_LegacyFallback(t *testing.T) {
	srv := httptest.NewServer(hallwayDimmer())
	defer srv.Close()

	gw := newTestGateway(t)

	snapshot, err := gw.GetFullStatus(context.Background(), deviceAddr(srv))
	require.NoError(t, err)

	assert.Equal(t, "Hallway", snapshot.Info.Name)
	assert.Equal(t, "SHSW-25", snapshot.Info.Model)
	assert.Equal(t, 1, snapshot.Info.Generation)

	sw := snapshot.Component("switch:0")
	require.NotNil(t, sw)

	var swStatus struct {
		Output  bool    `json:"output"`
		Source  string  `json:"source"`
		APower  float64 `json:"apower"`
		AEnergy struct {
			Total float64 `json:"total"`
		} `json:"aenergy"`
		Temperature struct {
			TC float64 `json:"tC"`
			TF float64 `json:"tF"`
		} `json:"temperature"`
	}

	require.NoError(t, json.Unmarshal(sw.Status, &swStatus))
	assert.True(t, swStatus.Output)
	assert.Equal(t, "http", swStatus.Source)
	assert.InDelta(t, 35.5, swStatus.APower, 0.001)
	assert.InDelta(t, 128000, swStatus.AEnergy.Total, 0.001)
	assert.InDelta(t, 41.2, swStatus.Temperature.TC, 0.001)
	assert.InDelta(t, 106.16, swStatus.Temperature.TF, 0.001)

	var swConfig map[string]any

	require.NoError(t, json.Unmarshal(sw.Config, &swConfig))
	assert.Equal(t, "Main", swConfig["name"])

	assert.ElementsMatch(t, legacyRelayActions, sw.AvailableActions)

	inputs := snapshot.ComponentsByType("input")
	assert.Len(t, inputs, 2)
}

func TestExecuteComponentAction_ModernSwitchToggle(t *testing.T) {
	var sawParams string

	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Switch.Toggle": func(params json.RawMessage) (any, bool) {
			sawParams = string(params)
			return map[string]any{"was_on": false}, true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "switch:0", "Toggle", nil)
	require.True(t, result.Success, result.Error)
	assert.JSONEq(t, `{"id":0}`, sawParams)
	assert.Equal(t, map[string]any{"was_on": false}, result.Data)
}

func TestExecuteComponentAction_MethodGatingUsesCachedList(t *testing.T) {
	device := &modernDevice{t: t, handlers: modernStatusHandlers(t)}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	_, err := gw.GetFullStatus(context.Background(), deviceAddr(srv))
	require.NoError(t, err)

	before := atomic.LoadInt32(&device.requests)

	// Cover.Open is absent from the cached method list: rejected without
	// touching the device.
	result := gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "cover:0", "Open", nil)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrKindUnsupported, result.ErrorKind)
	assert.Equal(t, before, atomic.LoadInt32(&device.requests))
}

func TestExecuteComponentAction_MalformedKey(t *testing.T) {
	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), "10.0.0.1", "switch:abc", "Toggle", nil)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrKindValidation, result.ErrorKind)
}

func TestExecuteComponentAction_LegacyRelay(t *testing.T) {
	device := hallwayDimmer()

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "switch:0", "Legacy.TurnOn", nil)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, device.hitList(), "/relay/0?turn=on")

	result = gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "switch:1", "Legacy.Toggle", nil)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, device.hitList(), "/relay/1?turn=toggle")
}

func TestExecuteComponentAction_LegacyUnknownAction(t *testing.T) {
	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), "10.0.0.1", "switch:0", "Legacy.Explode", nil)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrKindUnsupported, result.ErrorKind)
}

func TestExecuteComponentAction_DeviceWideRebootModern(t *testing.T) {
	var rebooted bool

	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Shelly.Reboot": func(json.RawMessage) (any, bool) {
			rebooted = true
			return map[string]any{}, true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "shelly", "Reboot", nil)
	require.True(t, result.Success, result.Error)
	assert.True(t, rebooted)
}

func TestExecuteComponentAction_DeviceWideLegacyFallback(t *testing.T) {
	device := hallwayDimmer()

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "shelly", "Reboot", nil)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, device.hitList(), "/reboot")

	result = gw.ExecuteComponentAction(context.Background(), deviceAddr(srv), "shelly", "Update", nil)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, device.hitList(), "/ota?update=true")
}

func TestExecuteComponentAction_UnknownDeviceWideVerb(t *testing.T) {
	gw := newTestGateway(t)

	result := gw.ExecuteComponentAction(context.Background(), "10.0.0.1", "shelly", "SelfDestruct", nil)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrKindUnsupported, result.ErrorKind)
}

func TestBulkAction_RestrictedToDeviceWideVerbs(t *testing.T) {
	gw := newTestGateway(t)

	_, err := gw.BulkAction(context.Background(), []string{"10.0.0.1"}, "switch:0", "Toggle", nil, 1)
	require.ErrorIs(t, err, ErrUnsupportedBulkVerb)

	_, err = gw.BulkAction(context.Background(), []string{"10.0.0.1"}, "shelly", "GetStatus", nil, 1)
	require.ErrorIs(t, err, ErrUnsupportedBulkVerb)

	_, err = gw.BulkAction(context.Background(), nil, "shelly", "Reboot", nil, 1)
	require.ErrorIs(t, err, ErrNoAddresses)
}

func TestBulkAction_MixedOutcomes(t *testing.T) {
	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Shelly.Reboot": func(json.RawMessage) (any, bool) {
			return map[string]any{}, true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	down.Close()

	gw := newTestGateway(t)

	results, err := gw.BulkAction(context.Background(),
		[]string{deviceAddr(srv), deviceAddr(down)}, "shelly", "Reboot", nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byAddress := make(map[string]models.ActionResult, len(results))
	for _, r := range results {
		byAddress[r.Address] = r
	}

	assert.True(t, byAddress[deviceAddr(srv)].Success)
	assert.False(t, byAddress[deviceAddr(down)].Success)
	assert.Equal(t, models.ErrKindUnreachable, byAddress[deviceAddr(down)].ErrorKind)
}

func TestGetConfig_SetConfig(t *testing.T) {
	device := &modernDevice{t: t, handlers: map[string]func(json.RawMessage) (any, bool){
		"Sys.GetConfig": func(json.RawMessage) (any, bool) {
			return map[string]any{"device": map[string]any{"name": "Office Plug"}}, true
		},
		"Sys.SetConfig": func(params json.RawMessage) (any, bool) {
			var p struct {
				Config map[string]any `json:"config"`
			}

			if err := json.Unmarshal(params, &p); err != nil || p.Config == nil {
				return nil, false
			}

			return map[string]any{"restart_required": false}, true
		},
	}}

	srv := httptest.NewServer(device)
	defer srv.Close()

	gw := newTestGateway(t)

	raw, err := gw.GetConfig(context.Background(), deviceAddr(srv))
	require.NoError(t, err)
	assert.JSONEq(t, `{"device":{"name":"Office Plug"}}`, string(raw))

	raw, err = gw.SetConfig(context.Background(), deviceAddr(srv),
		map[string]any{"device": map[string]any{"name": "Renamed"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"restart_required":false}`, string(raw))
}
