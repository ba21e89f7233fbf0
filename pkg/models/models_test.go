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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComponentKey(t *testing.T) {
	tests := []struct {
		key      string
		wantType string
		wantID   *int
		wantErr  bool
	}{
		{key: "switch:0", wantType: "switch", wantID: intPtr(0)},
		{key: "cover:12", wantType: "cover", wantID: intPtr(12)},
		{key: "Switch:3", wantType: "switch", wantID: intPtr(3)},
		{key: "sys", wantType: "sys"},
		{key: "Zigbee", wantType: "zigbee"},
		{key: "", wantErr: true},
		{key: "switch:abc", wantErr: true},
		{key: "switch:1:2", wantErr: true},
	}

	for _, tt := range tests {
		compType, id, err := ParseComponentKey(tt.key)

		if tt.wantErr {
			require.Error(t, err, "key %q", tt.key)
			continue
		}

		require.NoError(t, err, "key %q", tt.key)
		assert.Equal(t, tt.wantType, compType, "key %q", tt.key)

		if tt.wantID == nil {
			assert.Nil(t, id, "key %q", tt.key)
		} else {
			require.NotNil(t, id, "key %q", tt.key)
			assert.Equal(t, *tt.wantID, *id, "key %q", tt.key)
		}
	}
}

func intPtr(n int) *int { return &n }

func TestOutcomePositive(t *testing.T) {
	positive := []Outcome{OutcomeDetected, OutcomeUpdateAvail, OutcomeNoUpdateNeeded}
	for _, o := range positive {
		assert.True(t, o.Positive(), "outcome %s", o)
	}

	negative := []Outcome{
		OutcomeAuthRequired, OutcomeNotADevice, OutcomeUnreachable, OutcomeError, Outcome("bogus"),
	}
	for _, o := range negative {
		assert.False(t, o.Positive(), "outcome %s", o)
	}
}

func TestKindOf(t *testing.T) {
	err := NewDeviceError(ErrKindAuthRequired, "192.168.1.10", errors.New("401"))
	assert.Equal(t, ErrKindAuthRequired, KindOf(err))

	wrapped := fmt.Errorf("probing: %w", err)
	assert.Equal(t, ErrKindAuthRequired, KindOf(wrapped))

	assert.Equal(t, ErrKindCommunication, KindOf(errors.New("plain")))
}

func TestDeviceError_Message(t *testing.T) {
	inner := errors.New("connection refused")

	err := NewDeviceError(ErrKindUnreachable, "10.0.0.5", inner)
	assert.Equal(t, "10.0.0.5: unreachable: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)

	noAddr := NewDeviceError(ErrKindValidation, "", errors.New("bad key"))
	assert.Equal(t, "validation: bad key", noAddr.Error())
}

func TestDeviceSnapshot_Lookups(t *testing.T) {
	snapshot := &DeviceSnapshot{
		Components: []Component{
			{Key: "sys", Type: "sys"},
			{Key: "switch:0", Type: "switch"},
			{Key: "switch:1", Type: "switch"},
		},
	}

	require.NotNil(t, snapshot.Component("switch:1"))
	assert.Equal(t, "switch:1", snapshot.Component("switch:1").Key)
	assert.Nil(t, snapshot.Component("cover:0"))

	switches := snapshot.ComponentsByType("Switch")
	assert.Len(t, switches, 2)
	assert.Empty(t, snapshot.ComponentsByType("em"))
}

func TestComponent_OmitsEmptyFieldsInJSON(t *testing.T) {
	data, err := json.Marshal(Component{Key: "sys", Type: "sys"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"key":"sys","type":"sys"}`, string(data))
}
