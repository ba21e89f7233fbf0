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
	"time"

	"github.com/gorilla/mux"

	"github.com/plugfleet/plugfleet/pkg/creds"
)

// credentialSummary is the redacted listing shape; passwords never leave the
// store through the API.
type credentialSummary struct {
	Key        string    `json:"key"`
	Username   string    `json:"username"`
	LastSeenIP string    `json:"last_seen_ip,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *APIServer) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAll(r.Context())
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]credentialSummary, 0, len(all))
	for _, cred := range all {
		summaries = append(summaries, credentialSummary{
			Key:        cred.Key,
			Username:   cred.Username,
			LastSeenIP: cred.LastSeenIP,
			UpdatedAt:  cred.UpdatedAt,
		})
	}

	s.writeJSON(w, summaries)
}

func (s *APIServer) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	cred, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, creds.ErrNotFound) {
			s.writeError(w, err.Error(), http.StatusNotFound)
			return
		}

		s.writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, credentialSummary{
		Key:        cred.Key,
		Username:   cred.Username,
		LastSeenIP: cred.LastSeenIP,
		UpdatedAt:  cred.UpdatedAt,
	})
}

type setCredentialRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	LastSeenIP string `json:"last_seen_ip,omitempty"`
}

func (s *APIServer) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req setCredentialRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		s.writeError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	if err := s.store.Set(r.Context(), key, req.Username, req.Password, req.LastSeenIP); err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := s.store.Delete(r.Context(), key); err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
