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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

const (
	// DefaultRPCTimeout applies to status and config calls.
	DefaultRPCTimeout = 10 * time.Second
	// DefaultDiscoveryTimeout applies to discovery probes.
	DefaultDiscoveryTimeout = 3 * time.Second

	hardwareAddrHexLen = 12
)

// CallOptions tune a single RPC call.
type CallOptions struct {
	// Timeout bounds each HTTP attempt. Zero selects DefaultRPCTimeout.
	Timeout time.Duration
	// Credential, when set, is attached as basic auth and disables the
	// challenge/retry cycle.
	Credential *models.Credential
}

type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// RPCTransport submits JSON-RPC calls to Gen-modern devices over HTTP,
// handling at most one 401-challenge/retry cycle per call. Digest sessions
// are cached per hardware address so nonce state survives across calls.
type RPCTransport struct {
	client    *http.Client
	store     creds.Store
	authState *creds.AuthStateCache
	sessions  *sessionCache
	logger    logger.Logger

	mu      sync.RWMutex
	hwAddrs map[string]string // device address -> normalized hardware address
}

// NewRPCTransport builds a transport sharing one pooled HTTP client.
// Credential-store writes should be wired to InvalidateSession.
func NewRPCTransport(store creds.Store, authState *creds.AuthStateCache, log logger.Logger) *RPCTransport {
	return &RPCTransport{
		client:    &http.Client{},
		store:     store,
		authState: authState,
		sessions:  newSessionCache(),
		logger:    log.WithComponent("rpc"),
		hwAddrs:   make(map[string]string),
	}
}

// InvalidateSession drops the cached digest session for a hardware address.
// Called when credentials for the key change.
func (t *RPCTransport) InvalidateSession(key string) {
	t.sessions.invalidate(creds.NormalizeHardwareAddr(key))
}

// Call invokes method on the device at address and returns the raw result
// plus the wall-clock duration of the whole operation, auth retry included.
func (t *RPCTransport) Call(
	ctx context.Context, address, method string, params any, opts CallOptions,
) (json.RawMessage, time.Duration, error) {
	start := time.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}

	body, err := json.Marshal(rpcRequest{ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return nil, time.Since(start), models.NewDeviceError(models.ErrKindValidation, address, err)
	}

	authHeader, hadAuth := t.resolveAuth(address, method, opts)

	status, respBody, wwwAuth, err := t.send(ctx, address, body, authHeader, timeout)
	if err != nil {
		return nil, time.Since(start), models.NewDeviceError(models.ErrKindUnreachable, address, err)
	}

	switch {
	case status == http.StatusOK:
		result, err := parseRPCResult(respBody)
		if err != nil {
			return nil, time.Since(start), models.NewDeviceError(models.ErrKindCommunication, address, err)
		}

		return result, time.Since(start), nil

	case status == http.StatusUnauthorized && hadAuth:
		// Stored auth was rejected outright; the cached session is stale.
		t.sessions.invalidate(t.authKey(address))

		return nil, time.Since(start), models.NewDeviceError(models.ErrKindAuthRequired, address, ErrAuthRequired)

	case status == http.StatusUnauthorized:
		result, err := t.retryWithDigest(ctx, address, method, body, wwwAuth, timeout)

		return result, time.Since(start), err

	default:
		return nil, time.Since(start), models.NewDeviceError(models.ErrKindCommunication, address,
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, status))
	}
}

// retryWithDigest is the single permitted retry after an unauthenticated
// request was challenged.
func (t *RPCTransport) retryWithDigest(
	ctx context.Context, address, method string, body []byte, wwwAuth string, timeout time.Duration,
) (json.RawMessage, error) {
	chal, err := parseDigestChallenge(wwwAuth)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindCommunication, address, err)
	}

	hwAddr := t.resolveHardwareAddr(ctx, address, method, chal, timeout)

	t.authState.MarkRequired(address)

	if hwAddr != "" {
		t.authState.MarkRequired(hwAddr)
	}

	cred, err := t.store.Get(ctx, hwAddr)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindAuthRequired, address,
			fmt.Errorf("%w: %w", ErrNoCredentials, err))
	}

	session, err := newDigestSession(cred.Username, cred.Password, chal)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindCommunication, address, err)
	}

	key := t.authKey(address)
	t.sessions.put(key, session)

	authHeader, err := session.authorize(http.MethodPost, "/rpc")
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindCommunication, address, err)
	}

	status, respBody, _, err := t.send(ctx, address, body, authHeader, timeout)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindUnreachable, address, err)
	}

	switch status {
	case http.StatusOK:
		result, err := parseRPCResult(respBody)
		if err != nil {
			return nil, models.NewDeviceError(models.ErrKindCommunication, address, err)
		}

		return result, nil
	case http.StatusUnauthorized:
		t.sessions.invalidate(key)

		return nil, models.NewDeviceError(models.ErrKindAuthRequired, address, ErrAuthRequired)
	default:
		return nil, models.NewDeviceError(models.ErrKindCommunication, address,
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, status))
	}
}

// resolveAuth decides what, if anything, to attach before the first request.
func (t *RPCTransport) resolveAuth(address, method string, opts CallOptions) (header string, hadAuth bool) {
	if opts.Credential != nil {
		return basicAuthHeader(opts.Credential.Username, opts.Credential.Password), true
	}

	hwAddr := t.hardwareAddr(address)

	if !t.authState.Requires(address) && (hwAddr == "" || !t.authState.Requires(hwAddr)) {
		return "", false
	}

	session := t.sessions.get(t.authKey(address))
	if session == nil {
		// Known to need auth but no live session; the challenge cycle will
		// build one.
		return "", false
	}

	authHeader, err := session.authorize(http.MethodPost, "/rpc")
	if err != nil {
		t.logger.Warn().Err(err).Str("address", address).Str("method", method).
			Msg("dropping unusable digest session")
		t.sessions.invalidate(t.authKey(address))

		return "", false
	}

	return authHeader, true
}

// resolveHardwareAddr learns the device's hardware address. Gen-modern
// devices embed it as the trailing hex of the challenge realm
// ("shellyplus1pm-a8032ab12345"); when the realm does not carry one, an
// unauthenticated Shelly.GetDeviceInfo resolves it instead, except when that
// is the very method being retried.
func (t *RPCTransport) resolveHardwareAddr(
	ctx context.Context, address, method string, chal digestChallenge, timeout time.Duration,
) string {
	if hwAddr := t.hardwareAddr(address); hwAddr != "" {
		return hwAddr
	}

	if hwAddr := hardwareAddrFromRealm(chal.realm); hwAddr != "" {
		t.rememberHardwareAddr(address, hwAddr)
		return hwAddr
	}

	if method == methodGetDeviceInfo {
		return ""
	}

	body, err := json.Marshal(rpcRequest{ID: uuid.NewString(), Method: methodGetDeviceInfo})
	if err != nil {
		return ""
	}

	status, respBody, _, err := t.send(ctx, address, body, "", timeout)
	if err != nil || status != http.StatusOK {
		return ""
	}

	result, err := parseRPCResult(respBody)
	if err != nil {
		return ""
	}

	var info struct {
		MAC string `json:"mac"`
	}

	if err := json.Unmarshal(result, &info); err != nil || info.MAC == "" {
		return ""
	}

	hwAddr := creds.NormalizeHardwareAddr(info.MAC)
	t.rememberHardwareAddr(address, hwAddr)

	return hwAddr
}

func (t *RPCTransport) send(
	ctx context.Context, address string, body []byte, authHeader string, timeout time.Duration,
) (status int, respBody []byte, wwwAuth string, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		fmt.Sprintf("http://%s/rpc", address), bytes.NewReader(body))
	if err != nil {
		return 0, nil, "", err
	}

	req.Header.Set("Content-Type", "application/json")

	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.logger.Debug().Err(cerr).Msg("failed to close response body")
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", err
	}

	return resp.StatusCode, data, resp.Header.Get("WWW-Authenticate"), nil
}

// HardwareAddr returns the learned hardware address for a device address, if
// any.
func (t *RPCTransport) HardwareAddr(address string) string {
	return t.hardwareAddr(address)
}

func (t *RPCTransport) hardwareAddr(address string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.hwAddrs[address]
}

func (t *RPCTransport) rememberHardwareAddr(address, hwAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hwAddrs[address] = hwAddr
}

// authKey selects the key under which sessions and auth state are cached:
// the hardware address when known, the device address otherwise.
func (t *RPCTransport) authKey(address string) string {
	if hwAddr := t.hardwareAddr(address); hwAddr != "" {
		return hwAddr
	}

	return address
}

// parseRPCResult accepts both envelope ({"result": ...}) and bare result
// payloads.
func parseRPCResult(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrMalformedResponse
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if envelope.Error != nil {
		return nil, fmt.Errorf("%w: %d %s", ErrRPCError, envelope.Error.Code, envelope.Error.Message)
	}

	if envelope.Result != nil {
		return envelope.Result, nil
	}

	return json.RawMessage(trimmed), nil
}

func basicAuthHeader(username, password string) string {
	req, _ := http.NewRequest(http.MethodGet, "http://placeholder", nil) //nolint:errcheck // static URL
	req.SetBasicAuth(username, password)

	return req.Header.Get("Authorization")
}

// hardwareAddrFromRealm extracts the trailing 12-hex-digit hardware address
// from a challenge realm like "shellyplus1pm-a8032ab12345".
func hardwareAddrFromRealm(realm string) string {
	idx := strings.LastIndex(realm, "-")
	if idx < 0 || len(realm)-idx-1 != hardwareAddrHexLen {
		return ""
	}

	suffix := realm[idx+1:]

	for _, r := range suffix {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return ""
		}
	}

	return creds.NormalizeHardwareAddr(suffix)
}
