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

// Package creds provides per-device credential storage with passwords
// encrypted at rest, hardware-address normalization and the TTL'd auth-state
// cache consulted by the gateway before dialing a device.
package creds

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

var (
	ErrNotFound      = errors.New("credential not found")
	errBadCiphertext = errors.New("ciphertext too short")
)

const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLen       = 32
	saltLen      = 16
	storeFileTag = "plugfleet-credentials-v1"
	filePerm     = 0o600
)

// Store is the credential store boundary the gateway depends on. Lookups by
// hardware address must use normalized keys; Get falls back to the wildcard
// entry when no per-device entry exists.
type Store interface {
	ListAll(ctx context.Context) ([]models.Credential, error)
	Get(ctx context.Context, key string) (*models.Credential, error)
	Set(ctx context.Context, key, username, password, lastSeenIP string) error
	Delete(ctx context.Context, key string) error
	// OnChange registers a hook invoked with the normalized key after every
	// Set or Delete, so callers can invalidate cached auth sessions.
	OnChange(fn func(key string))
}

type storedEntry struct {
	Username   string    `json:"username"`
	Password   string    `json:"password"` // base64(nonce || AES-GCM ciphertext)
	LastSeenIP string    `json:"last_seen_ip,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type storeFile struct {
	Tag     string                 `json:"tag"`
	Salt    string                 `json:"salt"`
	Entries map[string]storedEntry `json:"entries"`
}

// FileStore keeps credentials in a JSON file with AES-256-GCM encrypted
// passwords. The key is derived from a passphrase with scrypt and a per-store
// random salt.
type FileStore struct {
	mu      sync.Mutex
	path    string
	pass    []byte
	key     []byte
	salt    []byte
	entries map[string]storedEntry
	hooks   []func(key string)
	loaded  bool
	logger  logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (or lazily creates) a credential file at path. The
// passphrase protects passwords at rest; it is never written to disk.
func NewFileStore(path, passphrase string, log logger.Logger) *FileStore {
	return &FileStore{
		path:   path,
		pass:   []byte(passphrase),
		logger: log.WithComponent("creds"),
	}
}

// ListAll returns every stored credential with decrypted passwords.
func (s *FileStore) ListAll(ctx context.Context) ([]models.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}

	out := make([]models.Credential, 0, len(s.entries))

	for key, entry := range s.entries {
		cred, err := s.toCredentialLocked(key, entry)
		if err != nil {
			return nil, err
		}

		out = append(out, *cred)
	}

	return out, nil
}

// Get looks up a credential by normalized key, falling back to the wildcard
// entry. Returns ErrNotFound when neither exists.
func (s *FileStore) Get(ctx context.Context, key string) (*models.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}

	normalized := NormalizeHardwareAddr(key)

	if entry, ok := s.entries[normalized]; ok {
		return s.toCredentialLocked(normalized, entry)
	}

	if entry, ok := s.entries[models.WildcardCredentialKey]; ok {
		return s.toCredentialLocked(models.WildcardCredentialKey, entry)
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, normalized)
}

// Set stores or replaces a credential and notifies change hooks.
func (s *FileStore) Set(ctx context.Context, key, username, password, lastSeenIP string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized := NormalizeHardwareAddr(key)

	s.mu.Lock()

	if err := s.loadLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	sealed, err := s.sealLocked(password)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.entries[normalized] = storedEntry{
		Username:   username,
		Password:   sealed,
		LastSeenIP: lastSeenIP,
		UpdatedAt:  time.Now().UTC(),
	}

	err = s.persistLocked()
	hooks := s.hooks
	s.mu.Unlock()

	if err != nil {
		return err
	}

	for _, fn := range hooks {
		fn(normalized)
	}

	return nil
}

// Delete removes a credential and notifies change hooks. Deleting an absent
// key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized := NormalizeHardwareAddr(key)

	s.mu.Lock()

	if err := s.loadLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	delete(s.entries, normalized)

	err := s.persistLocked()
	hooks := s.hooks
	s.mu.Unlock()

	if err != nil {
		return err
	}

	for _, fn := range hooks {
		fn(normalized)
	}

	return nil
}

func (s *FileStore) OnChange(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, fn)
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		salt := make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generating salt: %w", err)
		}

		s.salt = salt
		s.entries = make(map[string]storedEntry)
	case err != nil:
		return fmt.Errorf("reading credential file: %w", err)
	default:
		var file storeFile
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parsing credential file: %w", err)
		}

		salt, err := base64.StdEncoding.DecodeString(file.Salt)
		if err != nil {
			return fmt.Errorf("decoding salt: %w", err)
		}

		s.salt = salt
		s.entries = file.Entries

		if s.entries == nil {
			s.entries = make(map[string]storedEntry)
		}
	}

	key, err := scrypt.Key(s.pass, s.salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return fmt.Errorf("deriving key: %w", err)
	}

	s.key = key
	s.loaded = true

	return nil
}

func (s *FileStore) persistLocked() error {
	file := storeFile{
		Tag:     storeFileTag,
		Salt:    base64.StdEncoding.EncodeToString(s.salt),
		Entries: s.entries,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating credential dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}

	return os.Rename(tmp, s.path)
}

func (s *FileStore) sealLocked(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *FileStore) openLocked(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", errBadCiphertext
	}

	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting password: %w", err)
	}

	return string(plaintext), nil
}

func (s *FileStore) toCredentialLocked(key string, entry storedEntry) (*models.Credential, error) {
	password, err := s.openLocked(entry.Password)
	if err != nil {
		return nil, err
	}

	return &models.Credential{
		Key:        key,
		Username:   entry.Username,
		Password:   password,
		LastSeenIP: entry.LastSeenIP,
		UpdatedAt:  entry.UpdatedAt,
	}, nil
}
