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

// Package api provides the HTTP API server for the device fleet service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/plugfleet/plugfleet/pkg/bulk"
	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/gateway"
	plughttp "github.com/plugfleet/plugfleet/pkg/http"
	"github.com/plugfleet/plugfleet/pkg/logger"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	shutdownTimeout = 10 * time.Second

	maxRequestBody = 1 << 20 // 1 MiB
)

// APIServer exposes scanning, per-device and fleet-wide operations over HTTP.
type APIServer struct {
	router       *mux.Router
	gateway      *gateway.Gateway
	orchestrator *bulk.Orchestrator
	store        creds.Store
	apiKey       string
	logger       logger.Logger

	srv *http.Server
}

// Option configures the API server.
type Option func(*APIServer)

// WithAPIKey guards mutating routes with a shared key.
func WithAPIKey(key string) Option {
	return func(s *APIServer) {
		s.apiKey = key
	}
}

// NewAPIServer wires handlers for a gateway, orchestrator and credential
// store.
func NewAPIServer(
	gw *gateway.Gateway, orch *bulk.Orchestrator, store creds.Store, log logger.Logger, opts ...Option,
) *APIServer {
	s := &APIServer{
		router:       mux.NewRouter(),
		gateway:      gw,
		orchestrator: orch,
		store:        store,
		logger:       log.WithComponent("api"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	return s
}

// Router exposes the handler tree, mainly for tests.
func (s *APIServer) Router() http.Handler { return s.router }

func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return plughttp.CommonMiddleware(next, s.logger)
	})

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(plughttp.APIKeyMiddleware(s.apiKey, s.logger))

	api.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)

	api.HandleFunc("/devices/{address}/status", s.handleDeviceStatus).Methods(http.MethodGet)
	api.HandleFunc("/devices/{address}/actions", s.handleDeviceAction).Methods(http.MethodPost)
	api.HandleFunc("/devices/{address}/config", s.handleDeviceGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/devices/{address}/config", s.handleDeviceSetConfig).Methods(http.MethodPut)

	api.HandleFunc("/bulk/status", s.handleBulkStatus).Methods(http.MethodPost)
	api.HandleFunc("/bulk/{verb}", s.handleBulkVerb).Methods(http.MethodPost)

	api.HandleFunc("/config/export", s.handleConfigExport).Methods(http.MethodPost)
	api.HandleFunc("/config/apply", s.handleConfigApply).Methods(http.MethodPost)

	api.HandleFunc("/credentials", s.handleListCredentials).Methods(http.MethodGet)
	api.HandleFunc("/credentials/{key}", s.handleGetCredential).Methods(http.MethodGet)
	api.HandleFunc("/credentials/{key}", s.handleSetCredential).Methods(http.MethodPut)
	api.HandleFunc("/credentials/{key}", s.handleDeleteCredential).Methods(http.MethodDelete)
}

// Start serves until the listener fails or Stop is called.
func (s *APIServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")

	return s.srv.ListenAndServe()
}

// Stop drains in-flight requests and shuts the listener down.
func (s *APIServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(shutdownCtx)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (s *APIServer) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errorResponse{Message: message, Status: statusCode}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

func (s *APIServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() {
		if err := r.Body.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("failed to close request body")
		}
	}()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}

	return true
}
