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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDigestChallenge(t *testing.T) {
	header := `Digest qop="auth", realm="shellyplus1pm-a8032ab12345", ` +
		`nonce="605a5b0e", opaque="abc123", algorithm=SHA-256`

	chal, err := parseDigestChallenge(header)
	require.NoError(t, err)
	assert.Equal(t, "shellyplus1pm-a8032ab12345", chal.realm)
	assert.Equal(t, "605a5b0e", chal.nonce)
	assert.Equal(t, "abc123", chal.opaque)
	assert.Equal(t, "auth", chal.qop)
	assert.Equal(t, "SHA-256", chal.algorithm)
}

func TestParseDigestChallenge_DefaultsToMD5(t *testing.T) {
	chal, err := parseDigestChallenge(`Digest realm="r", nonce="n"`)
	require.NoError(t, err)
	assert.Equal(t, "MD5", chal.algorithm)
}

func TestParseDigestChallenge_Errors(t *testing.T) {
	_, err := parseDigestChallenge(`Basic realm="r"`)
	require.ErrorIs(t, err, ErrNotDigestChallenge)

	_, err = parseDigestChallenge(`Digest realm="r"`)
	require.ErrorIs(t, err, ErrBadChallenge)

	_, err = parseDigestChallenge(`Digest nonce="n"`)
	require.ErrorIs(t, err, ErrBadChallenge)
}

func TestSplitChallengeFields_QuotedCommas(t *testing.T) {
	fields := splitChallengeFields(`realm="a, b", nonce=xyz`)
	assert.Equal(t, "a, b", fields["realm"])
	assert.Equal(t, "xyz", fields["nonce"])
}

// Reference vector from RFC 7616 section 3.9.1 (MD5, qop=auth).
func TestDigestSession_RFC7616Vector(t *testing.T) {
	chal := digestChallenge{
		realm:     "http-auth@example.org",
		nonce:     "7ypf/xlj9XXwfDPEoM4URrv/xwf94BcCAzFZH4GiTo0v",
		opaque:    "FQhe/qaU925kfnzjCev0ciny7QMkPqMAFRtzCUYo5tdS",
		qop:       "auth",
		algorithm: "MD5",
	}

	session, err := newDigestSession("Mufasa", "Circle of Life", chal)
	require.NoError(t, err)

	session.cnonce = "f2/wE4q74E6zIJEtWaHKaf5wv/H5QzzpXusqGemxURZJ"

	header, err := session.authorize(http.MethodGet, "/dir/index.html")
	require.NoError(t, err)

	assert.Contains(t, header, `response="8ca523f5e9506fed4657c9700eebdbec"`)
	assert.Contains(t, header, `username="Mufasa"`)
	assert.Contains(t, header, `nc=00000001`)
	assert.Contains(t, header, `qop=auth`)
	assert.Contains(t, header, `opaque="FQhe/qaU925kfnzjCev0ciny7QMkPqMAFRtzCUYo5tdS"`)
}

func TestDigestSession_NonceCounterAdvances(t *testing.T) {
	session, err := newDigestSession("admin", "pw", digestChallenge{
		realm: "shellyplus1-aabbccddeeff", nonce: "n1", qop: "auth", algorithm: "SHA-256",
	})
	require.NoError(t, err)

	first, err := session.authorize(http.MethodPost, "/rpc")
	require.NoError(t, err)
	assert.Contains(t, first, "nc=00000001")

	second, err := session.authorize(http.MethodPost, "/rpc")
	require.NoError(t, err)
	assert.Contains(t, second, "nc=00000002")
	assert.NotEqual(t, first, second)
}

func TestDigestSession_RefreshResetsCounter(t *testing.T) {
	session, err := newDigestSession("admin", "pw", digestChallenge{
		realm: "r", nonce: "n1", qop: "auth",
	})
	require.NoError(t, err)

	_, err = session.authorize(http.MethodPost, "/rpc")
	require.NoError(t, err)

	session.refresh(digestChallenge{realm: "r", nonce: "n2", qop: "auth", algorithm: "MD5"})

	header, err := session.authorize(http.MethodPost, "/rpc")
	require.NoError(t, err)
	assert.Contains(t, header, "nc=00000001")
	assert.Contains(t, header, `nonce="n2"`)
}

func TestNewDigestSession_UnsupportedAlgorithm(t *testing.T) {
	_, err := newDigestSession("admin", "pw", digestChallenge{
		realm: "r", nonce: "n", algorithm: "SHA-512",
	})
	require.ErrorIs(t, err, ErrUnsupportedDigest)
}

func TestHardwareAddrFromRealm(t *testing.T) {
	tests := []struct {
		realm string
		want  string
	}{
		{"shellyplus1pm-a8032ab12345", "A8032AB12345"},
		{"shellypro4pm-AABBCCDDEEFF", "AABBCCDDEEFF"},
		{"shelly-zone2-b0b1b2b3b4b5", "B0B1B2B3B4B5"},
		{"no-hex-suffix-here", ""},
		{"short-abc123", ""},
		{"nodashes", ""},
		{"trailing-a8032ab1234z", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, hardwareAddrFromRealm(tt.realm), "realm %q", tt.realm)
	}
}
