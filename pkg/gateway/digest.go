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
	"crypto/md5"  //nolint:gosec // RFC 7616 digest auth requires MD5 support
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"sync"
)

// digestChallenge is a parsed WWW-Authenticate: Digest header.
type digestChallenge struct {
	realm     string
	nonce     string
	opaque    string
	qop       string
	algorithm string
}

// digestSession holds the client side of one digest conversation: the last
// server challenge plus the nonce counter and client nonce required by
// qop=auth. Gen-modern devices re-challenge on every request unless the
// session state is carried forward, so sessions are cached per hardware
// address and reused across calls.
type digestSession struct {
	mu       sync.Mutex
	username string
	password string
	chal     digestChallenge
	cnonce   string
	nc       uint32
}

func parseDigestChallenge(header string) (digestChallenge, error) {
	const prefix = "Digest "

	if !strings.HasPrefix(strings.TrimSpace(header), prefix) {
		return digestChallenge{}, ErrNotDigestChallenge
	}

	chal := digestChallenge{algorithm: "MD5"}
	fields := splitChallengeFields(strings.TrimSpace(header)[len(prefix):])

	for key, value := range fields {
		switch strings.ToLower(key) {
		case "realm":
			chal.realm = value
		case "nonce":
			chal.nonce = value
		case "opaque":
			chal.opaque = value
		case "qop":
			chal.qop = value
		case "algorithm":
			chal.algorithm = value
		}
	}

	if chal.realm == "" || chal.nonce == "" {
		return digestChallenge{}, ErrBadChallenge
	}

	return chal, nil
}

// splitChallengeFields parses `k1="v1", k2=v2, ...` respecting quoted commas.
func splitChallengeFields(s string) map[string]string {
	fields := make(map[string]string)

	var (
		key      strings.Builder
		value    strings.Builder
		inValue  bool
		inQuotes bool
	)

	commit := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			fields[k] = strings.TrimSpace(value.String())
		}

		key.Reset()
		value.Reset()

		inValue = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '=' && !inValue && !inQuotes:
			inValue = true
		case r == ',' && !inQuotes:
			commit()
		case inValue:
			value.WriteRune(r)
		default:
			key.WriteRune(r)
		}
	}

	commit()

	return fields
}

func newDigestSession(username, password string, chal digestChallenge) (*digestSession, error) {
	if _, err := digestHasher(chal.algorithm); err != nil {
		return nil, err
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	return &digestSession{
		username: username,
		password: password,
		chal:     chal,
		cnonce:   hex.EncodeToString(buf),
	}, nil
}

// refresh adopts a new server challenge, resetting the nonce counter.
func (s *digestSession) refresh(chal digestChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chal = chal
	s.nc = 0
}

// authorize produces the Authorization header for one request, advancing the
// nonce counter.
func (s *digestSession) authorize(method, uri string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newHash, err := digestHasher(s.chal.algorithm)
	if err != nil {
		return "", err
	}

	s.nc++
	nc := fmt.Sprintf("%08x", s.nc)

	ha1 := hexDigest(newHash, fmt.Sprintf("%s:%s:%s", s.username, s.chal.realm, s.password))
	ha2 := hexDigest(newHash, fmt.Sprintf("%s:%s", method, uri))

	var response string

	qop := pickQop(s.chal.qop)
	if qop == "auth" {
		response = hexDigest(newHash, fmt.Sprintf("%s:%s:%s:%s:%s:%s",
			ha1, s.chal.nonce, nc, s.cnonce, qop, ha2))
	} else {
		response = hexDigest(newHash, fmt.Sprintf("%s:%s:%s", ha1, s.chal.nonce, ha2))
	}

	var b strings.Builder

	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s", algorithm=%s`,
		s.username, s.chal.realm, s.chal.nonce, uri, response, s.chal.algorithm)

	if qop != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, qop, nc, s.cnonce)
	}

	if s.chal.opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, s.chal.opaque)
	}

	return b.String(), nil
}

func pickQop(offered string) string {
	for _, q := range strings.Split(offered, ",") {
		if strings.TrimSpace(q) == "auth" {
			return "auth"
		}
	}

	return ""
}

func digestHasher(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(strings.TrimSuffix(algorithm, "-sess")) {
	case "", "MD5":
		return md5.New, nil
	case "SHA-256", "SHA256":
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDigest, algorithm)
	}
}

func hexDigest(newHash func() hash.Hash, data string) string {
	h := newHash()
	h.Write([]byte(data))

	return hex.EncodeToString(h.Sum(nil))
}

// sessionCache holds digest sessions keyed by normalized hardware address.
// Two concurrent first-use calls may each build a session; the last store
// wins and the orphan is harmless.
type sessionCache struct {
	mu       sync.RWMutex
	sessions map[string]*digestSession
}

func newSessionCache() *sessionCache {
	return &sessionCache{sessions: make(map[string]*digestSession)}
}

func (c *sessionCache) get(key string) *digestSession {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sessions[key]
}

func (c *sessionCache) put(key string, s *digestSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[key] = s
}

func (c *sessionCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, key)
}
