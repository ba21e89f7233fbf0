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
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/plugfleet/plugfleet/pkg/bulk"
	"github.com/plugfleet/plugfleet/pkg/models"
	"github.com/plugfleet/plugfleet/pkg/scan"
)

type scanRequest struct {
	Targets []string `json:"targets"`
	Workers int      `json:"workers,omitempty"`
	UseMDNS bool     `json:"use_mdns,omitempty"`
}

type scanResponse struct {
	Devices []models.DiscoveryResult `json:"devices"`
	Total   int                      `json:"total"`
}

func (s *APIServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	devices, err := s.orchestrator.Scan(r.Context(), req.Targets, scan.Options{
		Workers: req.Workers,
		UseMDNS: req.UseMDNS,
	})
	if err != nil {
		s.writeError(w, err.Error(), scanErrorStatus(err))
		return
	}

	s.writeJSON(w, scanResponse{Devices: devices, Total: len(devices)})
}

func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrNoTargets),
		errors.Is(err, scan.ErrInvalidTarget),
		errors.Is(err, scan.ErrInvalidAddress),
		errors.Is(err, scan.ErrRangeReversed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type bulkRequest struct {
	Addresses []string `json:"addresses"`
	Channel   string   `json:"channel,omitempty"`
	Workers   int      `json:"workers,omitempty"`
}

func (s *APIServer) handleBulkVerb(w http.ResponseWriter, r *http.Request) {
	verb := mux.Vars(r)["verb"]

	var req bulkRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var (
		result *models.BulkResult
		err    error
	)

	switch verb {
	case "update":
		result, err = s.orchestrator.Update(r.Context(), req.Addresses, req.Channel, req.Workers)
	case "reboot":
		result, err = s.orchestrator.Reboot(r.Context(), req.Addresses, req.Workers)
	case "factory-reset":
		result, err = s.orchestrator.FactoryReset(r.Context(), req.Addresses, req.Workers)
	default:
		s.writeError(w, "unknown bulk verb: "+verb, http.StatusNotFound)
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bulk.ErrNoAddresses) {
			status = http.StatusBadRequest
		}

		s.writeError(w, err.Error(), status)

		return
	}

	s.writeJSON(w, result)
}

func (s *APIServer) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	report, err := s.orchestrator.Status(r.Context(), req.Addresses, req.Workers)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bulk.ErrNoAddresses) {
			status = http.StatusBadRequest
		}

		s.writeError(w, err.Error(), status)

		return
	}

	s.writeJSON(w, report)
}

type configExportRequest struct {
	Addresses      []string `json:"addresses"`
	ComponentTypes []string `json:"component_types,omitempty"`
	Workers        int      `json:"workers,omitempty"`
}

func (s *APIServer) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	var req configExportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	export, err := s.orchestrator.ConfigExport(r.Context(), req.Addresses, req.ComponentTypes, req.Workers)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bulk.ErrNoAddresses) {
			status = http.StatusBadRequest
		}

		s.writeError(w, err.Error(), status)

		return
	}

	s.writeJSON(w, export)
}

// configApplyRequest carries either the direct form (addresses + component
// type + one config) or a previously exported structure to replay.
type configApplyRequest struct {
	Addresses     []string             `json:"addresses,omitempty"`
	ComponentType string               `json:"component_type,omitempty"`
	Config        map[string]any       `json:"config,omitempty"`
	Export        *models.ConfigExport `json:"export,omitempty"`
	Workers       int                  `json:"workers,omitempty"`
}

func (s *APIServer) handleConfigApply(w http.ResponseWriter, r *http.Request) {
	var req configApplyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var (
		result *models.BulkResult
		err    error
	)

	if req.Export != nil {
		result, err = s.orchestrator.ConfigApplyExport(r.Context(), req.Export, req.Workers)
	} else {
		result, err = s.orchestrator.ConfigApply(r.Context(), req.Addresses, req.ComponentType, req.Config, req.Workers)
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bulk.ErrNoAddresses) ||
			errors.Is(err, bulk.ErrNoComponentType) ||
			errors.Is(err, bulk.ErrNoConfig) {
			status = http.StatusBadRequest
		}

		s.writeError(w, err.Error(), status)

		return
	}

	s.writeJSON(w, result)
}
