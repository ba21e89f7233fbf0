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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

// LegacyTransport speaks the Gen-legacy HTTP/GET dialect: structured
// endpoints return JSON, action endpoints return raw text. Legacy devices do
// not authenticate.
type LegacyTransport struct {
	client *http.Client
	logger logger.Logger
}

// NewLegacyTransport builds a legacy transport with its own pooled client.
func NewLegacyTransport(log logger.Logger) *LegacyTransport {
	return &LegacyTransport{
		client: &http.Client{},
		logger: log.WithComponent("legacy"),
	}
}

// Get fetches http://{address}/{endpoint} with optional query parameters and
// returns the parsed JSON object, or {"response": "<raw text>"} when the body
// is not JSON.
func (t *LegacyTransport) Get(
	ctx context.Context, address, endpoint string, params url.Values, timeout time.Duration,
) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := fmt.Sprintf("http://%s/%s", address, endpoint)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindValidation, address, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindUnreachable, address, err)
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.logger.Debug().Err(cerr).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindUnreachable, address, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewDeviceError(models.ErrKindCommunication, address,
			fmt.Errorf("%w: %d on /%s", ErrUnexpectedStatus, resp.StatusCode, endpoint))
	}

	if json.Valid(body) {
		return body, nil
	}

	wrapped, err := json.Marshal(map[string]string{"response": string(body)})
	if err != nil {
		return nil, models.NewDeviceError(models.ErrKindCommunication, address, err)
	}

	return wrapped, nil
}
