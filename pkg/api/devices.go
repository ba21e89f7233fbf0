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

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/plugfleet/plugfleet/pkg/models"
)

// statusForKind translates a device error classification into an HTTP status.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindValidation, models.ErrKindUnsupported:
		return http.StatusBadRequest
	case models.ErrKindAuthRequired:
		return http.StatusUnauthorized
	case models.ErrKindUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *APIServer) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	snapshot, err := s.gateway.GetFullStatus(r.Context(), address)
	if err != nil {
		s.writeError(w, err.Error(), statusForKind(models.KindOf(err)))
		return
	}

	s.writeJSON(w, snapshot)
}

type actionRequest struct {
	ComponentKey string         `json:"component_key"`
	Action       string         `json:"action"`
	Params       map[string]any `json:"params,omitempty"`
}

func (s *APIServer) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	var req actionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.ComponentKey == "" || req.Action == "" {
		s.writeError(w, "component_key and action are required", http.StatusBadRequest)
		return
	}

	result := s.gateway.ExecuteComponentAction(r.Context(), address, req.ComponentKey, req.Action, req.Params)

	if !result.Success {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusForKind(result.ErrorKind))
	}

	s.writeJSON(w, result)
}

func (s *APIServer) handleDeviceGetConfig(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	raw, err := s.gateway.GetConfig(r.Context(), address)
	if err != nil {
		s.writeError(w, err.Error(), statusForKind(models.KindOf(err)))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(raw); err != nil {
		s.logger.Error().Err(err).Str("address", address).Msg("failed to write config response")
	}
}

type setConfigRequest struct {
	Config map[string]any `json:"config"`
}

func (s *APIServer) handleDeviceSetConfig(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	var req setConfigRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if len(req.Config) == 0 {
		s.writeError(w, "config is required", http.StatusBadRequest)
		return
	}

	raw, err := s.gateway.SetConfig(r.Context(), address, req.Config)
	if err != nil {
		s.writeError(w, err.Error(), statusForKind(models.KindOf(err)))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(raw); err != nil {
		s.logger.Error().Err(err).Str("address", address).Msg("failed to write config response")
	}
}
