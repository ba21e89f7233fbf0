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

	"github.com/tidwall/gjson"

	"github.com/plugfleet/plugfleet/pkg/models"
)

// Projections turn a component's raw status/config blobs into typed views.
// Every field is nullable or defaulted; missing keys never abort. Raw blobs
// are kept on the component for forward compatibility.

// SwitchView is the typed projection of a switch:N component.
type SwitchView struct {
	Output       bool     `json:"output"`
	ActivePower  *float64 `json:"apower,omitempty"`
	Voltage      *float64 `json:"voltage,omitempty"`
	Current      *float64 `json:"current,omitempty"`
	Frequency    *float64 `json:"freq,omitempty"`
	PowerFactor  *float64 `json:"pf,omitempty"`
	TempC        *float64 `json:"temperature_c,omitempty"`
	TempF        *float64 `json:"temperature_f,omitempty"`
	EnergyKWh    *float64 `json:"energy_kwh,omitempty"`
	Source       string   `json:"source,omitempty"`
	Name         string   `json:"name,omitempty"`
	AutoOn       bool     `json:"auto_on"`
	AutoOff      bool     `json:"auto_off"`
	PowerLimit   *float64 `json:"power_limit,omitempty"`
	CurrentLimit *float64 `json:"current_limit,omitempty"`
}

// ProjectSwitch projects a switch component.
func ProjectSwitch(c *models.Component) SwitchView {
	return SwitchView{
		Output:       gjson.GetBytes(c.Status, "output").Bool(),
		ActivePower:  optFloat(c.Status, "apower"),
		Voltage:      optFloat(c.Status, "voltage"),
		Current:      optFloat(c.Status, "current"),
		Frequency:    optFloat(c.Status, "freq"),
		PowerFactor:  optFloat(c.Status, "pf"),
		TempC:        optFloat(c.Status, "temperature.tC"),
		TempF:        optFloat(c.Status, "temperature.tF"),
		EnergyKWh:    optFloat(c.Status, "aenergy.total"),
		Source:       gjson.GetBytes(c.Status, "source").String(),
		Name:         gjson.GetBytes(c.Config, "name").String(),
		AutoOn:       gjson.GetBytes(c.Config, "auto_on").Bool(),
		AutoOff:      gjson.GetBytes(c.Config, "auto_off").Bool(),
		PowerLimit:   optFloat(c.Config, "power_limit"),
		CurrentLimit: optFloat(c.Config, "current_limit"),
	}
}

// InputView is the typed projection of an input:N component.
type InputView struct {
	State     bool   `json:"state"`
	InputType string `json:"input_type,omitempty"`
	Name      string `json:"name,omitempty"`
	Enabled   bool   `json:"enabled"`
	Inverted  bool   `json:"inverted"`
}

// ProjectInput projects an input component.
func ProjectInput(c *models.Component) InputView {
	return InputView{
		State:     gjson.GetBytes(c.Status, "state").Bool(),
		InputType: gjson.GetBytes(c.Config, "type").String(),
		Name:      gjson.GetBytes(c.Config, "name").String(),
		Enabled:   gjson.GetBytes(c.Config, "enable").Bool(),
		Inverted:  gjson.GetBytes(c.Config, "invert").Bool(),
	}
}

// CoverView is the typed projection of a cover:N component.
type CoverView struct {
	State         string   `json:"state"` // open/closed/opening/closing/stopped/unknown
	Position      *float64 `json:"position,omitempty"`
	ActivePower   *float64 `json:"apower,omitempty"`
	Voltage       *float64 `json:"voltage,omitempty"`
	Current       *float64 `json:"current,omitempty"`
	TempC         *float64 `json:"temperature_c,omitempty"`
	EnergyKWh     *float64 `json:"energy_kwh,omitempty"`
	LastDirection string   `json:"last_direction,omitempty"`
	Source        string   `json:"source,omitempty"`
	Name          string   `json:"name,omitempty"`
	MaxTimeOpen   *float64 `json:"maxtime_open,omitempty"`
	MaxTimeClose  *float64 `json:"maxtime_close,omitempty"`
	PowerLimit    *float64 `json:"power_limit,omitempty"`
}

// ProjectCover projects a cover component.
func ProjectCover(c *models.Component) CoverView {
	state := gjson.GetBytes(c.Status, "state").String()
	if state == "" {
		state = "unknown"
	}

	return CoverView{
		State:         state,
		Position:      optFloat(c.Status, "current_pos"),
		ActivePower:   optFloat(c.Status, "apower"),
		Voltage:       optFloat(c.Status, "voltage"),
		Current:       optFloat(c.Status, "current"),
		TempC:         optFloat(c.Status, "temperature.tC"),
		EnergyKWh:     optFloat(c.Status, "aenergy.total"),
		LastDirection: gjson.GetBytes(c.Status, "last_direction").String(),
		Source:        gjson.GetBytes(c.Status, "source").String(),
		Name:          gjson.GetBytes(c.Config, "name").String(),
		MaxTimeOpen:   optFloat(c.Config, "maxtime_open"),
		MaxTimeClose:  optFloat(c.Config, "maxtime_close"),
		PowerLimit:    optFloat(c.Config, "power_limit"),
	}
}

// SystemView is the typed projection of the sys component.
type SystemView struct {
	DeviceName       string         `json:"device_name,omitempty"`
	MACAddress       string         `json:"mac_address,omitempty"`
	FirmwareID       string         `json:"firmware_id,omitempty"`
	Uptime           *float64       `json:"uptime,omitempty"`
	RestartRequired  bool           `json:"restart_required"`
	RAMTotal         *float64       `json:"ram_total,omitempty"`
	RAMFree          *float64       `json:"ram_free,omitempty"`
	FSTotal          *float64       `json:"fs_total,omitempty"`
	FSFree           *float64       `json:"fs_free,omitempty"`
	AvailableUpdates map[string]any `json:"available_updates,omitempty"`
	UnixTime         *float64       `json:"unixtime,omitempty"`
	Timezone         string         `json:"timezone,omitempty"`
}

// ProjectSystem projects the sys component.
func ProjectSystem(c *models.Component) SystemView {
	view := SystemView{
		DeviceName:      gjson.GetBytes(c.Config, "device.name").String(),
		MACAddress:      gjson.GetBytes(c.Status, "mac").String(),
		FirmwareID:      gjson.GetBytes(c.Status, "fw_id").String(),
		Uptime:          optFloat(c.Status, "uptime"),
		RestartRequired: gjson.GetBytes(c.Status, "restart_required").Bool(),
		RAMTotal:        optFloat(c.Status, "ram_size"),
		RAMFree:         optFloat(c.Status, "ram_free"),
		FSTotal:         optFloat(c.Status, "fs_size"),
		FSFree:          optFloat(c.Status, "fs_free"),
		UnixTime:        optFloat(c.Status, "unixtime"),
		Timezone:        gjson.GetBytes(c.Config, "location.tz").String(),
	}

	if updates := gjson.GetBytes(c.Status, "available_updates"); updates.IsObject() {
		view.AvailableUpdates = updates.Value().(map[string]any)
	}

	if view.MACAddress == "" {
		view.MACAddress = gjson.GetBytes(c.Config, "device.mac").String()
	}

	if view.FirmwareID == "" {
		view.FirmwareID = gjson.GetBytes(c.Config, "device.fw_id").String()
	}

	return view
}

// CloudView is the typed projection of the cloud component.
type CloudView struct {
	Connected bool   `json:"connected"`
	Enabled   bool   `json:"enabled"`
	Server    string `json:"server,omitempty"`
}

// ProjectCloud projects the cloud component.
func ProjectCloud(c *models.Component) CloudView {
	return CloudView{
		Connected: gjson.GetBytes(c.Status, "connected").Bool(),
		Enabled:   gjson.GetBytes(c.Config, "enable").Bool(),
		Server:    gjson.GetBytes(c.Config, "server").String(),
	}
}

// WifiView is the typed projection of the wifi component.
type WifiView struct {
	StationIP   string   `json:"sta_ip,omitempty"`
	StationIPv6 []string `json:"sta_ip6,omitempty"`
	Status      string   `json:"status,omitempty"`
	SSID        string   `json:"ssid,omitempty"`
	BSSID       string   `json:"bssid,omitempty"`
	RSSI        *float64 `json:"rssi,omitempty"`
}

// ProjectWifi projects the wifi component.
func ProjectWifi(c *models.Component) WifiView {
	return WifiView{
		StationIP:   gjson.GetBytes(c.Status, "sta_ip").String(),
		StationIPv6: strSlice(c.Status, "sta_ip6"),
		Status:      gjson.GetBytes(c.Status, "status").String(),
		SSID:        gjson.GetBytes(c.Status, "ssid").String(),
		BSSID:       gjson.GetBytes(c.Status, "bssid").String(),
		RSSI:        optFloat(c.Status, "rssi"),
	}
}

// WebsocketView is the typed projection of the ws component.
type WebsocketView struct {
	Connected bool `json:"connected"`
}

// ProjectWebsocket projects the ws component.
func ProjectWebsocket(c *models.Component) WebsocketView {
	return WebsocketView{Connected: gjson.GetBytes(c.Status, "connected").Bool()}
}

// EthernetView is the typed projection of the eth component.
type EthernetView struct {
	IP         string   `json:"ip,omitempty"`
	IPv6       []string `json:"ip6,omitempty"`
	Enabled    bool     `json:"enabled"`
	ServerMode bool     `json:"server_mode"`
	IPv4Mode   string   `json:"ipv4_mode,omitempty"`
	Netmask    string   `json:"netmask,omitempty"`
	Gateway    string   `json:"gateway,omitempty"`
	Nameserver string   `json:"nameserver,omitempty"`
}

// ProjectEthernet projects the eth component.
func ProjectEthernet(c *models.Component) EthernetView {
	return EthernetView{
		IP:         gjson.GetBytes(c.Status, "ip").String(),
		IPv6:       strSlice(c.Status, "ip6"),
		Enabled:    gjson.GetBytes(c.Config, "enable").Bool(),
		ServerMode: gjson.GetBytes(c.Config, "server_mode").Bool(),
		IPv4Mode:   gjson.GetBytes(c.Config, "ipv4mode").String(),
		Netmask:    gjson.GetBytes(c.Config, "netmask").String(),
		Gateway:    gjson.GetBytes(c.Config, "gw").String(),
		Nameserver: gjson.GetBytes(c.Config, "nameserver").String(),
	}
}

// BTHomeView is the typed projection of the bthome component.
type BTHomeView struct {
	Errors  []string `json:"errors,omitempty"`
	Enabled bool     `json:"enabled"`
}

// ProjectBTHome projects the bthome component.
func ProjectBTHome(c *models.Component) BTHomeView {
	return BTHomeView{
		Errors:  strSlice(c.Status, "errors"),
		Enabled: gjson.GetBytes(c.Config, "enable").Bool(),
	}
}

// BLEView is the typed projection of the ble component.
type BLEView struct {
	Enabled    bool `json:"enabled"`
	RPCEnabled bool `json:"rpc_enabled"`
}

// ProjectBLE projects the ble component.
func ProjectBLE(c *models.Component) BLEView {
	return BLEView{
		Enabled:    gjson.GetBytes(c.Config, "enable").Bool(),
		RPCEnabled: gjson.GetBytes(c.Config, "rpc.enable").Bool(),
	}
}

// KNXView is the typed projection of the knx component.
type KNXView struct {
	Enabled     bool   `json:"enabled"`
	IndividualA string `json:"ia,omitempty"`
	RoutingAddr string `json:"routing_addr,omitempty"`
}

// ProjectKNX projects the knx component.
func ProjectKNX(c *models.Component) KNXView {
	return KNXView{
		Enabled:     gjson.GetBytes(c.Config, "enable").Bool(),
		IndividualA: gjson.GetBytes(c.Config, "ia").String(),
		RoutingAddr: gjson.GetBytes(c.Config, "routing.addr").String(),
	}
}

// MQTTView is the typed projection of the mqtt component.
type MQTTView struct {
	Connected     bool   `json:"connected"`
	Enabled       bool   `json:"enabled"`
	Server        string `json:"server,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	User          string `json:"user,omitempty"`
	TopicPrefix   string `json:"topic_prefix,omitempty"`
	RPCNotifs     bool   `json:"rpc_ntf"`
	StatusNotifs  bool   `json:"status_ntf"`
	EnableControl bool   `json:"enable_control"`
	EnableRPC     bool   `json:"enable_rpc"`
}

// ProjectMQTT projects the mqtt component.
func ProjectMQTT(c *models.Component) MQTTView {
	return MQTTView{
		Connected:     gjson.GetBytes(c.Status, "connected").Bool(),
		Enabled:       gjson.GetBytes(c.Config, "enable").Bool(),
		Server:        gjson.GetBytes(c.Config, "server").String(),
		ClientID:      gjson.GetBytes(c.Config, "client_id").String(),
		User:          gjson.GetBytes(c.Config, "user").String(),
		TopicPrefix:   gjson.GetBytes(c.Config, "topic_prefix").String(),
		RPCNotifs:     gjson.GetBytes(c.Config, "rpc_ntf").Bool(),
		StatusNotifs:  gjson.GetBytes(c.Config, "status_ntf").Bool(),
		EnableControl: gjson.GetBytes(c.Config, "enable_control").Bool(),
		EnableRPC:     gjson.GetBytes(c.Config, "enable_rpc").Bool(),
	}
}

// ZigbeeView is the typed projection of the zigbee component.
type ZigbeeView struct {
	NetworkState string `json:"network_state,omitempty"`
	Enabled      bool   `json:"enabled"`
}

// ProjectZigbee projects the zigbee component.
func ProjectZigbee(c *models.Component) ZigbeeView {
	return ZigbeeView{
		NetworkState: gjson.GetBytes(c.Status, "network_state").String(),
		Enabled:      gjson.GetBytes(c.Config, "enable").Bool(),
	}
}

// EMPhaseView is one phase of a 3-phase meter.
type EMPhaseView struct {
	Current       *float64 `json:"current,omitempty"`
	Voltage       *float64 `json:"voltage,omitempty"`
	ActivePower   *float64 `json:"act_power,omitempty"`
	ApparentPower *float64 `json:"aprt_power,omitempty"`
	PowerFactor   *float64 `json:"pf,omitempty"`
	Frequency     *float64 `json:"freq,omitempty"`
}

// EMView is the typed projection of a 3-phase em:N component.
type EMView struct {
	PhaseA             EMPhaseView `json:"a"`
	PhaseB             EMPhaseView `json:"b"`
	PhaseC             EMPhaseView `json:"c"`
	NeutralCurrent     *float64    `json:"n_current,omitempty"`
	TotalCurrent       *float64    `json:"total_current,omitempty"`
	TotalActivePower   *float64    `json:"total_act_power,omitempty"`
	TotalApparentPower *float64    `json:"total_aprt_power,omitempty"`
	Name               string      `json:"name,omitempty"`
	CTType             string      `json:"ct_type,omitempty"`
}

// ProjectEM projects a 3-phase energy meter component.
func ProjectEM(c *models.Component) EMView {
	phase := func(p string) EMPhaseView {
		return EMPhaseView{
			Current:       optFloat(c.Status, p+"_current"),
			Voltage:       optFloat(c.Status, p+"_voltage"),
			ActivePower:   optFloat(c.Status, p+"_act_power"),
			ApparentPower: optFloat(c.Status, p+"_aprt_power"),
			PowerFactor:   optFloat(c.Status, p+"_pf"),
			Frequency:     optFloat(c.Status, p+"_freq"),
		}
	}

	return EMView{
		PhaseA:             phase("a"),
		PhaseB:             phase("b"),
		PhaseC:             phase("c"),
		NeutralCurrent:     optFloat(c.Status, "n_current"),
		TotalCurrent:       optFloat(c.Status, "total_current"),
		TotalActivePower:   optFloat(c.Status, "total_act_power"),
		TotalApparentPower: optFloat(c.Status, "total_aprt_power"),
		Name:               gjson.GetBytes(c.Config, "name").String(),
		CTType:             gjson.GetBytes(c.Config, "ct_type").String(),
	}
}

// EM1View is the typed projection of a 1-phase em1:N component.
type EM1View struct {
	Current       *float64 `json:"current,omitempty"`
	Voltage       *float64 `json:"voltage,omitempty"`
	ActivePower   *float64 `json:"act_power,omitempty"`
	ApparentPower *float64 `json:"aprt_power,omitempty"`
	PowerFactor   *float64 `json:"pf,omitempty"`
	Frequency     *float64 `json:"freq,omitempty"`
	Name          string   `json:"name,omitempty"`
	CTType        string   `json:"ct_type,omitempty"`
	Reverse       bool     `json:"reverse"`
}

// ProjectEM1 projects a 1-phase energy meter component.
func ProjectEM1(c *models.Component) EM1View {
	return EM1View{
		Current:       optFloat(c.Status, "current"),
		Voltage:       optFloat(c.Status, "voltage"),
		ActivePower:   optFloat(c.Status, "act_power"),
		ApparentPower: optFloat(c.Status, "aprt_power"),
		PowerFactor:   optFloat(c.Status, "pf"),
		Frequency:     optFloat(c.Status, "freq"),
		Name:          gjson.GetBytes(c.Config, "name").String(),
		CTType:        gjson.GetBytes(c.Config, "ct_type").String(),
		Reverse:       gjson.GetBytes(c.Config, "reverse").Bool(),
	}
}

// EMDataView is the typed projection of an emdata:N component: cumulative
// per-phase energies for a 3-phase meter.
type EMDataView struct {
	PhaseAEnergy        *float64 `json:"a_total_act_energy,omitempty"`
	PhaseBEnergy        *float64 `json:"b_total_act_energy,omitempty"`
	PhaseCEnergy        *float64 `json:"c_total_act_energy,omitempty"`
	PhaseAReturned      *float64 `json:"a_total_act_ret_energy,omitempty"`
	PhaseBReturned      *float64 `json:"b_total_act_ret_energy,omitempty"`
	PhaseCReturned      *float64 `json:"c_total_act_ret_energy,omitempty"`
	TotalEnergy         *float64 `json:"total_act,omitempty"`
	TotalReturnedEnergy *float64 `json:"total_act_ret,omitempty"`
}

// ProjectEMData projects a 3-phase cumulative energy component.
func ProjectEMData(c *models.Component) EMDataView {
	return EMDataView{
		PhaseAEnergy:        optFloat(c.Status, "a_total_act_energy"),
		PhaseBEnergy:        optFloat(c.Status, "b_total_act_energy"),
		PhaseCEnergy:        optFloat(c.Status, "c_total_act_energy"),
		PhaseAReturned:      optFloat(c.Status, "a_total_act_ret_energy"),
		PhaseBReturned:      optFloat(c.Status, "b_total_act_ret_energy"),
		PhaseCReturned:      optFloat(c.Status, "c_total_act_ret_energy"),
		TotalEnergy:         optFloat(c.Status, "total_act"),
		TotalReturnedEnergy: optFloat(c.Status, "total_act_ret"),
	}
}

// EM1DataView is the typed projection of an em1data:N component.
type EM1DataView struct {
	TotalEnergy         *float64 `json:"total_act_energy,omitempty"`
	TotalReturnedEnergy *float64 `json:"total_act_ret_energy,omitempty"`
}

// ProjectEM1Data projects a 1-phase cumulative energy component.
func ProjectEM1Data(c *models.Component) EM1DataView {
	return EM1DataView{
		TotalEnergy:         optFloat(c.Status, "total_act_energy"),
		TotalReturnedEnergy: optFloat(c.Status, "total_act_ret_energy"),
	}
}

func optFloat(raw json.RawMessage, path string) *float64 {
	r := gjson.GetBytes(raw, path)
	if !r.Exists() || r.Type != gjson.Number {
		return nil
	}

	v := r.Float()

	return &v
}

func strSlice(raw json.RawMessage, path string) []string {
	r := gjson.GetBytes(raw, path)
	if !r.IsArray() {
		return nil
	}

	var out []string

	for _, item := range r.Array() {
		out = append(out, item.String())
	}

	return out
}
