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
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

func newTestTransport(t *testing.T) (*RPCTransport, *creds.FileStore, *creds.AuthStateCache) {
	t.Helper()

	store := creds.NewFileStore(t.TempDir()+"/creds.json", "pass", logger.NewTestLogger())
	authState := creds.NewAuthStateCache(0)

	return NewRPCTransport(store, authState, logger.NewTestLogger()), store, authState
}

func deviceAddr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestRPCTransport_Call(t *testing.T) {
	var sawMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/rpc", r.URL.Path)
		assert.NotEmpty(t, req.ID)

		sawMethod = req.Method

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","src":"shellyplus1","result":{"uptime":42}}`))
	}))
	defer srv.Close()

	transport, _, _ := newTestTransport(t)

	result, elapsed, err := transport.Call(context.Background(), deviceAddr(srv),
		"Sys.GetStatus", nil, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Sys.GetStatus", sawMethod)
	assert.JSONEq(t, `{"uptime":42}`, string(result))
	assert.Positive(t, elapsed)
}

func TestRPCTransport_BareResultPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"methods":["Shelly.GetStatus"]}`))
	}))
	defer srv.Close()

	transport, _, _ := newTestTransport(t)

	result, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Shelly.ListMethods", nil, CallOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"methods":["Shelly.GetStatus"]}`, string(result))
}

func TestRPCTransport_RPCErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"1","error":{"code":404,"message":"No handler for Cover.Open"}}`))
	}))
	defer srv.Close()

	transport, _, _ := newTestTransport(t)

	_, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Cover.Open", nil, CallOptions{})
	require.ErrorIs(t, err, ErrRPCError)
	assert.Equal(t, models.ErrKindCommunication, models.KindOf(err))
}

func TestRPCTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	transport, _, _ := newTestTransport(t)

	_, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Shelly.GetDeviceInfo", nil, CallOptions{})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnreachable, models.KindOf(err))
}

// challengingServer 401s unauthenticated requests with a digest challenge and
// accepts any request carrying a digest Authorization header.
func challengingServer(t *testing.T, realm string, requests *int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Digest ") {
			w.Header().Set("WWW-Authenticate",
				`Digest qop="auth", realm="`+realm+`", nonce="abc123", algorithm=SHA-256`)
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		assert.Contains(t, auth, `username="admin"`)
		assert.Contains(t, auth, `uri="/rpc"`)
		assert.Contains(t, auth, "qop=auth")

		_, _ = w.Write([]byte(`{"id":"1","result":{"ok":true}}`))
	}))
}

func TestRPCTransport_ChallengeRetryIsExactlyTwoRequests(t *testing.T) {
	var requests int32

	srv := challengingServer(t, "shellyplus1pm-a8032ab12345", &requests)
	defer srv.Close()

	transport, store, authState := newTestTransport(t)
	require.NoError(t, store.Set(context.Background(), "A8032AB12345", "admin", "secret", ""))

	result, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Switch.Toggle", map[string]any{"id": 0}, CallOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	// Hardware address was learned from the realm and both keys were marked.
	assert.Equal(t, "A8032AB12345", transport.HardwareAddr(deviceAddr(srv)))
	assert.True(t, authState.Requires("A8032AB12345"))
	assert.True(t, authState.Requires(deviceAddr(srv)))
}

func TestRPCTransport_SecondCallAuthenticatesPreemptively(t *testing.T) {
	var requests int32

	srv := challengingServer(t, "shellyplus1pm-a8032ab12345", &requests)
	defer srv.Close()

	transport, store, _ := newTestTransport(t)
	require.NoError(t, store.Set(context.Background(), "A8032AB12345", "admin", "secret", ""))

	_, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Switch.Toggle", nil, CallOptions{})
	require.NoError(t, err)

	_, _, err = transport.Call(context.Background(), deviceAddr(srv),
		"Switch.Toggle", nil, CallOptions{})
	require.NoError(t, err)

	// Two for the challenged first call, one for the preemptive second.
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestRPCTransport_NoCredentials(t *testing.T) {
	var requests int32

	srv := challengingServer(t, "shellyplus1pm-a8032ab12345", &requests)
	defer srv.Close()

	transport, _, _ := newTestTransport(t)

	_, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Switch.Toggle", nil, CallOptions{})
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Equal(t, models.ErrKindAuthRequired, models.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestRPCTransport_PersistentRejectionIsAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("WWW-Authenticate",
			`Digest qop="auth", realm="shellyplus1pm-a8032ab12345", nonce="abc", algorithm=SHA-256`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	transport, store, _ := newTestTransport(t)
	require.NoError(t, store.Set(context.Background(), "A8032AB12345", "admin", "wrong", ""))

	_, _, err := transport.Call(context.Background(), deviceAddr(srv),
		"Switch.Toggle", nil, CallOptions{})
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, models.ErrKindAuthRequired, models.KindOf(err))
}

func TestRPCTransport_ExplicitCredentialUsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "pw", pass)

		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	transport, _, _ := newTestTransport(t)

	_, _, err := transport.Call(context.Background(), deviceAddr(srv), "Sys.GetStatus", nil,
		CallOptions{Credential: &models.Credential{Username: "admin", Password: "pw"}})
	require.NoError(t, err)
}

func TestRPCTransport_InvalidateSessionForcesRechallenge(t *testing.T) {
	var requests int32

	srv := challengingServer(t, "shellyplus1pm-a8032ab12345", &requests)
	defer srv.Close()

	transport, store, _ := newTestTransport(t)
	require.NoError(t, store.Set(context.Background(), "A8032AB12345", "admin", "secret", ""))

	_, _, err := transport.Call(context.Background(), deviceAddr(srv), "Switch.Toggle", nil, CallOptions{})
	require.NoError(t, err)

	transport.InvalidateSession("a8:03:2a:b1:23:45")

	_, _, err = transport.Call(context.Background(), deviceAddr(srv), "Switch.Toggle", nil, CallOptions{})
	require.NoError(t, err)

	// 2 for the first call, then 2 again after the session was dropped.
	assert.Equal(t, int32(4), atomic.LoadInt32(&requests))
}
