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

// Package gateway is the dual-protocol device adapter: it speaks the modern
// JSON-RPC dialect first and falls back to the legacy HTTP/GET dialect, and
// exposes a uniform action and configuration surface over both.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

const (
	methodGetDeviceInfo  = "Shelly.GetDeviceInfo"
	methodGetStatus      = "Shelly.GetStatus"
	methodGetComponents  = "Shelly.GetComponents"
	methodListMethods    = "Shelly.ListMethods"
	methodCheckForUpdate = "Shelly.CheckForUpdate"

	// ShellyComponentKey is the pseudo-component carrying device-wide verbs.
	ShellyComponentKey = "shelly"
)

// deviceWideVerbs are the only actions accepted on the shelly
// pseudo-component, mirroring the fixed Shelly.Update/Reboot/FactoryReset
// surface. No dynamic inference from the method list is attempted.
var deviceWideVerbs = map[string]string{
	"Update":       "Shelly.Update",
	"Reboot":       "Shelly.Reboot",
	"FactoryReset": "Shelly.FactoryReset",
}

// legacyDeviceWideEndpoints maps device-wide verbs onto Gen-legacy GET
// endpoints for the modern-path fallback.
var legacyDeviceWideEndpoints = map[string]struct {
	endpoint string
	params   url.Values
}{
	"Update":       {endpoint: "ota", params: url.Values{"update": {"true"}}},
	"Reboot":       {endpoint: "reboot"},
	"FactoryReset": {endpoint: "reset"},
}

// Gateway models devices as collections of typed components and provides one
// operation per verb. It owns the transports, the credential store handle and
// the auth-state cache; callers hold only transient per-call state.
type Gateway struct {
	rpc    *RPCTransport
	legacy *LegacyTransport
	logger logger.Logger

	discoveryTimeout time.Duration
	rpcTimeout       time.Duration

	mu      sync.RWMutex
	methods map[string][]string // per-address RPC method list cache
}

// Option tunes gateway construction.
type Option func(*Gateway)

// WithTimeouts overrides the discovery and RPC timeouts.
func WithTimeouts(discovery, rpc time.Duration) Option {
	return func(g *Gateway) {
		if discovery > 0 {
			g.discoveryTimeout = discovery
		}

		if rpc > 0 {
			g.rpcTimeout = rpc
		}
	}
}

// New builds a gateway. Credential-store changes invalidate the transport's
// cached digest session for the affected key.
func New(store creds.Store, authState *creds.AuthStateCache, log logger.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		rpc:              NewRPCTransport(store, authState, log),
		legacy:           NewLegacyTransport(log),
		logger:           log.WithComponent("gateway"),
		discoveryTimeout: DefaultDiscoveryTimeout,
		rpcTimeout:       DefaultRPCTimeout,
		methods:          make(map[string][]string),
	}

	store.OnChange(g.rpc.InvalidateSession)

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// RPCTransport exposes the modern transport, mainly for tests.
func (g *Gateway) RPCTransport() *RPCTransport { return g.rpc }

// Discover probes one address: modern Shelly.GetDeviceInfo first, then the
// legacy /shelly path, classifying the outcome.
func (g *Gateway) Discover(ctx context.Context, address string) models.DiscoveryResult {
	start := time.Now()

	result, modernErr := g.discoverModern(ctx, address)
	if modernErr == nil {
		result.ResponseTime = time.Since(start)
		return result
	}

	if models.KindOf(modernErr) == models.ErrKindAuthRequired {
		return models.DiscoveryResult{
			Address:      address,
			Outcome:      models.OutcomeAuthRequired,
			AuthRequired: true,
			ResponseTime: time.Since(start),
			Error:        modernErr.Error(),
		}
	}

	result, legacyErr := g.discoverLegacy(ctx, address)
	if legacyErr == nil {
		result.ResponseTime = time.Since(start)
		return result
	}

	return models.DiscoveryResult{
		Address:      address,
		Outcome:      models.OutcomeUnreachable,
		ResponseTime: time.Since(start),
		Error:        legacyErr.Error(),
	}
}

func (g *Gateway) discoverModern(ctx context.Context, address string) (models.DiscoveryResult, error) {
	raw, _, err := g.rpc.Call(ctx, address, methodGetDeviceInfo, nil,
		CallOptions{Timeout: g.discoveryTimeout})
	if err != nil {
		return models.DiscoveryResult{}, err
	}

	var info struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Model   string `json:"model"`
		MAC     string `json:"mac"`
		Gen     int    `json:"gen"`
		FwID    string `json:"fw_id"`
		Version string `json:"ver"`
		App     string `json:"app"`
		AuthEn  bool   `json:"auth_en"`
	}

	if err := json.Unmarshal(raw, &info); err != nil {
		return models.DiscoveryResult{}, models.NewDeviceError(models.ErrKindCommunication, address, err)
	}

	if info.ID == "" && info.MAC == "" {
		return models.DiscoveryResult{}, models.NewDeviceError(models.ErrKindCommunication, address,
			fmt.Errorf("%w: no device identity in response", ErrMalformedResponse))
	}

	result := models.DiscoveryResult{
		Address:         address,
		Outcome:         models.OutcomeDetected,
		DeviceID:        info.ID,
		DeviceType:      info.Model,
		DeviceName:      info.Name,
		FirmwareVersion: info.Version,
		MACAddress:      creds.NormalizeHardwareAddr(info.MAC),
		AuthRequired:    info.AuthEn,
		Generation:      info.Gen,
	}

	// Update check is best-effort: a failure downgrades nothing.
	updateRaw, _, err := g.rpc.Call(ctx, address, methodCheckForUpdate, nil,
		CallOptions{Timeout: g.discoveryTimeout})
	if err != nil {
		return result, nil
	}

	var update struct {
		Stable *struct {
			Version string `json:"version"`
		} `json:"stable"`
	}

	if err := json.Unmarshal(updateRaw, &update); err != nil {
		return result, nil
	}

	if update.Stable != nil && update.Stable.Version != "" {
		result.Outcome = models.OutcomeUpdateAvail
	} else {
		result.Outcome = models.OutcomeNoUpdateNeeded
	}

	return result, nil
}

func (g *Gateway) discoverLegacy(ctx context.Context, address string) (models.DiscoveryResult, error) {
	shelly, err := g.legacy.Get(ctx, address, "shelly", nil, g.discoveryTimeout)
	if err != nil {
		return models.DiscoveryResult{}, err
	}

	var info struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		MAC  string `json:"mac"`
		Fw   string `json:"fw"`
		Auth bool   `json:"auth"`
	}

	if err := json.Unmarshal(shelly, &info); err != nil {
		return models.DiscoveryResult{}, models.NewDeviceError(models.ErrKindCommunication, address, err)
	}

	if info.ID == "" && info.Type == "" && info.MAC == "" {
		return models.DiscoveryResult{}, models.NewDeviceError(models.ErrKindCommunication, address,
			fmt.Errorf("%w: /shelly returned no identity", ErrMalformedResponse))
	}

	result := models.DiscoveryResult{
		Address:         address,
		Outcome:         models.OutcomeDetected,
		DeviceID:        info.ID,
		DeviceType:      info.Type,
		FirmwareVersion: info.Fw,
		MACAddress:      creds.NormalizeHardwareAddr(info.MAC),
		AuthRequired:    info.Auth,
		Generation:      1,
	}

	// status and settings are best-effort refinements.
	status, statusErr := g.legacy.Get(ctx, address, "status", nil, g.discoveryTimeout)
	if statusErr == nil {
		if updates := legacyAvailableUpdates(status); updates["stable"] != nil {
			result.Outcome = models.OutcomeUpdateAvail
		} else {
			result.Outcome = models.OutcomeNoUpdateNeeded
		}
	}

	settings, settingsErr := g.legacy.Get(ctx, address, "settings", nil, g.discoveryTimeout)
	if settingsErr == nil {
		if name := legacyDeviceName(settings); name != "" {
			result.DeviceName = name
		}
	}

	return result, nil
}

// GetFullStatus builds a component snapshot of one device. The modern path
// issues the four status calls concurrently and tolerates partial failures;
// when every data call fails the legacy mapping path takes over.
func (g *Gateway) GetFullStatus(ctx context.Context, address string) (*models.DeviceSnapshot, error) {
	snapshot, modernErr := g.fullStatusModern(ctx, address)
	if modernErr == nil {
		return snapshot, nil
	}

	if models.KindOf(modernErr) == models.ErrKindAuthRequired {
		return nil, modernErr
	}

	snapshot, legacyErr := g.fullStatusLegacy(ctx, address)
	if legacyErr != nil {
		return nil, modernErr
	}

	return snapshot, nil
}

func (g *Gateway) fullStatusModern(ctx context.Context, address string) (*models.DeviceSnapshot, error) {
	var (
		infoRaw, componentsRaw, statusRaw json.RawMessage
		infoErr, compErr, statusErr       error
		methodsList                       []string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	opts := CallOptions{Timeout: g.rpcTimeout}

	eg.Go(func() error {
		infoRaw, _, infoErr = g.rpc.Call(egCtx, address, methodGetDeviceInfo, nil, opts)
		return nil
	})
	eg.Go(func() error {
		componentsRaw, _, compErr = g.rpc.Call(egCtx, address, methodGetComponents,
			map[string]any{"offset": 0}, opts)
		return nil
	})
	eg.Go(func() error {
		statusRaw, _, statusErr = g.rpc.Call(egCtx, address, methodGetStatus, nil, opts)
		return nil
	})
	eg.Go(func() error {
		raw, _, err := g.rpc.Call(egCtx, address, methodListMethods, nil, opts)
		if err != nil {
			return nil
		}

		var parsed struct {
			Methods []string `json:"methods"`
		}

		if err := json.Unmarshal(raw, &parsed); err == nil {
			methodsList = parsed.Methods
		}

		return nil
	})

	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	if infoErr != nil && compErr != nil && statusErr != nil {
		return nil, infoErr
	}

	if len(methodsList) > 0 {
		g.rememberMethods(address, methodsList)
	}

	snapshot := &models.DeviceSnapshot{
		Address:     address,
		Methods:     methodsList,
		LastUpdated: time.Now().UTC(),
	}

	if infoErr == nil {
		snapshot.Info = parseModernInfo(infoRaw)
	}

	snapshot.Components, snapshot.ConfigRev = buildModernComponents(componentsRaw, statusRaw, methodsList)

	return snapshot, nil
}

func parseModernInfo(raw json.RawMessage) models.DeviceInfo {
	var info struct {
		Name   string `json:"name"`
		Model  string `json:"model"`
		MAC    string `json:"mac"`
		Gen    int    `json:"gen"`
		Ver    string `json:"ver"`
		App    string `json:"app"`
		AuthEn bool   `json:"auth_en"`
	}

	_ = json.Unmarshal(raw, &info) //nolint:errcheck // projection tolerates partial payloads

	return models.DeviceInfo{
		Name:            info.Name,
		Model:           info.Model,
		FirmwareVersion: info.Ver,
		MACAddress:      creds.NormalizeHardwareAddr(info.MAC),
		AppName:         info.App,
		Generation:      info.Gen,
		AuthRequired:    info.AuthEn,
	}
}

// buildModernComponents merges Shelly.GetComponents with Shelly.GetStatus,
// annotates available actions, and synthesizes a zigbee component when
// GetStatus reports one that GetComponents omitted. Duplicate keys are
// dropped.
func buildModernComponents(componentsRaw, statusRaw json.RawMessage, methods []string) ([]models.Component, int) {
	var parsed struct {
		Components []struct {
			Key    string          `json:"key"`
			Status json.RawMessage `json:"status"`
			Config json.RawMessage `json:"config"`
		} `json:"components"`
		CfgRev int `json:"cfg_rev"`
	}

	if len(componentsRaw) > 0 {
		_ = json.Unmarshal(componentsRaw, &parsed) //nolint:errcheck // tolerated
	}

	statusByKey := make(map[string]json.RawMessage)

	if len(statusRaw) > 0 {
		_ = json.Unmarshal(statusRaw, &statusByKey) //nolint:errcheck // tolerated
	}

	var (
		components []models.Component
		seen       = make(map[string]struct{})
	)

	for _, item := range parsed.Components {
		if _, dup := seen[item.Key]; dup {
			continue
		}

		seen[item.Key] = struct{}{}

		comp := NewComponent(item.Key, item.Status, item.Config)

		if len(comp.Status) == 0 {
			if st, ok := statusByKey[item.Key]; ok {
				comp.Status = st
			}
		}

		comp.AvailableActions = AvailableActions(comp.Type, methods)

		components = append(components, comp)
	}

	if zigbeeStatus, ok := statusByKey["zigbee"]; ok {
		if _, present := seen["zigbee"]; !present {
			comp := NewComponent("zigbee", zigbeeStatus, nil)
			comp.AvailableActions = AvailableActions("zigbee", methods)
			components = append(components, comp)
		}
	}

	return components, parsed.CfgRev
}

func (g *Gateway) fullStatusLegacy(ctx context.Context, address string) (*models.DeviceSnapshot, error) {
	shelly, err := g.legacy.Get(ctx, address, "shelly", nil, g.rpcTimeout)
	if err != nil {
		return nil, err
	}

	// status/settings failures leave those payloads empty; the mapper copes.
	status, _ := g.legacy.Get(ctx, address, "status", nil, g.rpcTimeout)     //nolint:errcheck // best effort
	settings, _ := g.legacy.Get(ctx, address, "settings", nil, g.rpcTimeout) //nolint:errcheck // best effort

	var info struct {
		Type string `json:"type"`
		MAC  string `json:"mac"`
		Fw   string `json:"fw"`
		Auth bool   `json:"auth"`
	}

	_ = json.Unmarshal(shelly, &info) //nolint:errcheck // tolerated

	return &models.DeviceSnapshot{
		Address: address,
		Info: models.DeviceInfo{
			Name:            legacyDeviceName(settings),
			Model:           info.Type,
			FirmwareVersion: info.Fw,
			MACAddress:      creds.NormalizeHardwareAddr(info.MAC),
			Generation:      1,
			AuthRequired:    info.Auth,
		},
		Components:  MapLegacyComponents(shelly, status, settings),
		LastUpdated: time.Now().UTC(),
	}, nil
}

// ExecuteComponentAction runs one action on one component. Legacy.* actions
// route to fixed legacy endpoints; everything else becomes a
// <Prefix>.<Action> RPC method, gated on the device's method list when one is
// cached.
func (g *Gateway) ExecuteComponentAction(
	ctx context.Context, address, componentKey, action string, params map[string]any,
) models.ActionResult {
	if strings.HasPrefix(action, "Legacy.") {
		return g.executeLegacyAction(ctx, address, componentKey, action)
	}

	compType, id, err := models.ParseComponentKey(componentKey)
	if err != nil {
		return failedAction(address, action, componentKey, models.ErrKindValidation, err)
	}

	if compType == ShellyComponentKey {
		return g.executeDeviceWideAction(ctx, address, action, params)
	}

	method := APIPrefix(compType) + "." + action

	if methods := g.cachedMethods(ctx, address); len(methods) > 0 && !containsMethod(methods, method) {
		return failedAction(address, action, componentKey, models.ErrKindUnsupported,
			fmt.Errorf("%w: %s", ErrMethodNotSupported, method))
	}

	callParams := make(map[string]any)

	if id != nil {
		callParams["id"] = *id
	}

	for k, v := range params {
		callParams[k] = v
	}

	var rpcParams any
	if len(callParams) > 0 {
		rpcParams = callParams
	}

	raw, _, err := g.rpc.Call(ctx, address, method, rpcParams, CallOptions{Timeout: g.rpcTimeout})
	if err != nil {
		return failedAction(address, action, componentKey, models.KindOf(err), err)
	}

	return successfulAction(address, action, componentKey,
		fmt.Sprintf("%s on %s succeeded", method, address), rawToAny(raw))
}

// executeDeviceWideAction runs one of the fixed Shelly.* verbs, falling back
// to the legacy endpoint when the modern dialect is not spoken.
func (g *Gateway) executeDeviceWideAction(
	ctx context.Context, address, action string, params map[string]any,
) models.ActionResult {
	method, ok := deviceWideVerbs[action]
	if !ok {
		return failedAction(address, action, ShellyComponentKey, models.ErrKindUnsupported,
			fmt.Errorf("%w: shelly.%s", ErrMethodNotSupported, action))
	}

	var rpcParams any
	if len(params) > 0 {
		rpcParams = params
	}

	raw, _, err := g.rpc.Call(ctx, address, method, rpcParams, CallOptions{Timeout: g.rpcTimeout})
	if err == nil {
		return successfulAction(address, action, ShellyComponentKey,
			fmt.Sprintf("%s on %s succeeded", method, address), rawToAny(raw))
	}

	// Gen-legacy devices answer /rpc with an error rather than speaking the
	// modern dialect; anything except an auth demand is worth the fallback.
	if models.KindOf(err) == models.ErrKindAuthRequired {
		return failedAction(address, action, ShellyComponentKey, models.KindOf(err), err)
	}

	legacy, ok := legacyDeviceWideEndpoints[action]
	if !ok {
		return failedAction(address, action, ShellyComponentKey, models.KindOf(err), err)
	}

	raw, legacyErr := g.legacy.Get(ctx, address, legacy.endpoint, legacy.params, g.rpcTimeout)
	if legacyErr != nil {
		// Report the modern failure; the device is likely just offline.
		return failedAction(address, action, ShellyComponentKey, models.KindOf(err), err)
	}

	return successfulAction(address, action, ShellyComponentKey,
		fmt.Sprintf("legacy %s on %s succeeded", legacy.endpoint, address), rawToAny(raw))
}

// legacyActionRoutes maps component type + Legacy.* action onto endpoint
// templates and query parameters.
var legacyActionRoutes = map[string]map[string]struct {
	endpoint string
	query    url.Values
}{
	"switch": {
		"Legacy.Toggle":  {endpoint: "relay/%d", query: url.Values{"turn": {"toggle"}}},
		"Legacy.TurnOn":  {endpoint: "relay/%d", query: url.Values{"turn": {"on"}}},
		"Legacy.TurnOff": {endpoint: "relay/%d", query: url.Values{"turn": {"off"}}},
	},
	"cover": {
		"Legacy.Open":  {endpoint: "roller/%d", query: url.Values{"go": {"open"}}},
		"Legacy.Close": {endpoint: "roller/%d", query: url.Values{"go": {"close"}}},
		"Legacy.Stop":  {endpoint: "roller/%d", query: url.Values{"go": {"stop"}}},
	},
	"input": {
		"Legacy.InputMomentary":        {endpoint: "settings/relay/%d", query: url.Values{"btn_type": {"momentary"}}},
		"Legacy.InputToggle":           {endpoint: "settings/relay/%d", query: url.Values{"btn_type": {"toggle"}}},
		"Legacy.InputEdge":             {endpoint: "settings/relay/%d", query: url.Values{"btn_type": {"edge"}}},
		"Legacy.InputDetached":         {endpoint: "settings/relay/%d", query: url.Values{"btn_type": {"detached"}}},
		"Legacy.InputActivation":       {endpoint: "settings/relay/%d", query: url.Values{"btn_type": {"activation"}}},
		"Legacy.InputMomentaryRelease": {endpoint: "settings/relay/%d", query: url.Values{"btn_type": {"momentary_on_release"}}},
		"Legacy.InputReverse":          {endpoint: "settings/relay/%d", query: url.Values{"btn_reverse": {"1"}}},
		"Legacy.InputNormal":           {endpoint: "settings/relay/%d", query: url.Values{"btn_reverse": {"0"}}},
	},
}

func (g *Gateway) executeLegacyAction(
	ctx context.Context, address, componentKey, action string,
) models.ActionResult {
	compType, id, err := models.ParseComponentKey(componentKey)
	if err != nil {
		return failedAction(address, action, componentKey, models.ErrKindValidation, err)
	}

	routes, ok := legacyActionRoutes[compType]
	if !ok {
		return failedAction(address, action, componentKey, models.ErrKindUnsupported,
			fmt.Errorf("%w: %s on %s", ErrUnsupportedLegacy, action, compType))
	}

	route, ok := routes[action]
	if !ok {
		return failedAction(address, action, componentKey, models.ErrKindUnsupported,
			fmt.Errorf("%w: %s on %s", ErrUnsupportedLegacy, action, compType))
	}

	channel := 0
	if id != nil {
		channel = *id
	}

	endpoint := fmt.Sprintf(route.endpoint, channel)

	raw, err := g.legacy.Get(ctx, address, endpoint, route.query, g.rpcTimeout)
	if err != nil {
		return failedAction(address, action, componentKey, models.KindOf(err), err)
	}

	return successfulAction(address, action, componentKey,
		fmt.Sprintf("legacy %s on %s succeeded", endpoint, address), rawToAny(raw))
}

// BulkAction fans a device-wide verb out over many addresses without
// cancelling siblings on individual failures. Only the shelly
// pseudo-component's fixed verbs are accepted.
func (g *Gateway) BulkAction(
	ctx context.Context, addresses []string, componentKey, action string,
	params map[string]any, workers int,
) ([]models.ActionResult, error) {
	if componentKey != ShellyComponentKey {
		return nil, fmt.Errorf("%w: got %s.%s", ErrUnsupportedBulkVerb, componentKey, action)
	}

	if _, ok := deviceWideVerbs[action]; !ok {
		return nil, fmt.Errorf("%w: got %s.%s", ErrUnsupportedBulkVerb, componentKey, action)
	}

	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	if workers <= 0 {
		workers = 10
	}

	var (
		mu      sync.Mutex
		results []models.ActionResult
	)

	eg := &errgroup.Group{}
	eg.SetLimit(workers)

	for _, address := range addresses {
		address := address

		eg.Go(func() error {
			result := g.ExecuteComponentAction(ctx, address, componentKey, action, params)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			return nil
		})
	}

	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	return results, nil
}

// GetConfig fetches the device's system configuration.
func (g *Gateway) GetConfig(ctx context.Context, address string) (json.RawMessage, error) {
	raw, _, err := g.rpc.Call(ctx, address, "Sys.GetConfig", nil, CallOptions{Timeout: g.rpcTimeout})

	return raw, err
}

// SetConfig applies a system configuration fragment.
func (g *Gateway) SetConfig(ctx context.Context, address string, config map[string]any) (json.RawMessage, error) {
	raw, _, err := g.rpc.Call(ctx, address, "Sys.SetConfig",
		map[string]any{"config": config}, CallOptions{Timeout: g.rpcTimeout})

	return raw, err
}

// cachedMethods returns the device's method list, fetching and caching it on
// first use. A device that cannot answer ListMethods yields nil and gating is
// skipped.
func (g *Gateway) cachedMethods(ctx context.Context, address string) []string {
	g.mu.RLock()
	methods, ok := g.methods[address]
	g.mu.RUnlock()

	if ok {
		return methods
	}

	raw, _, err := g.rpc.Call(ctx, address, methodListMethods, nil, CallOptions{Timeout: g.rpcTimeout})
	if err != nil {
		return nil
	}

	var parsed struct {
		Methods []string `json:"methods"`
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}

	g.rememberMethods(address, parsed.Methods)

	return parsed.Methods
}

func (g *Gateway) rememberMethods(address string, methods []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.methods[address] = methods
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}

	return false
}

func legacyDeviceName(settings json.RawMessage) string {
	var parsed struct {
		Device struct {
			Name string `json:"name"`
		} `json:"device"`
		Name string `json:"name"`
	}

	_ = json.Unmarshal(settings, &parsed) //nolint:errcheck // tolerated

	if parsed.Device.Name != "" {
		return parsed.Device.Name
	}

	return parsed.Name
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}

	return v
}

func successfulAction(address, verb, componentKey, message string, data any) models.ActionResult {
	return models.ActionResult{
		Address:      address,
		Verb:         verb,
		ComponentKey: componentKey,
		Success:      true,
		Message:      message,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	}
}

func failedAction(address, verb, componentKey string, kind models.ErrorKind, err error) models.ActionResult {
	return models.ActionResult{
		Address:      address,
		Verb:         verb,
		ComponentKey: componentKey,
		Success:      false,
		Message:      fmt.Sprintf("%s on %s failed", verb, address),
		Error:        err.Error(),
		ErrorKind:    kind,
		Timestamp:    time.Now().UTC(),
	}
}
