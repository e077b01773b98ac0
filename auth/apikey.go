package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// APIKeyHeader carries API keys.
const APIKeyHeader = "X-API-Key"

// APIKey is a registered key. Only its SHA-256 hash is kept.
type APIKey struct {
	// ID names the key in logs and run records. It is the principal.
	ID string

	// Hash is the hex SHA-256 of the key.
	Hash string

	// Roles granted to callers presenting the key.
	Roles []string

	// ExpiresAt disables the key after this time. Zero means never.
	ExpiresAt time.Time
}

// KeyStore looks up API keys by hash.
type KeyStore interface {
	// Lookup returns the key with hash, or nil when unknown.
	Lookup(ctx context.Context, hash string) (*APIKey, error)
}

// HashAPIKey returns the hex SHA-256 of key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryKeyStore is an in-memory KeyStore.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey
}

// NewMemoryKeyStore creates an empty key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]*APIKey)}
}

// StaticKeys builds a store from plain advisor and admin key lists. Blank
// entries are skipped. Each key's id is a short prefix of its hash.
func StaticKeys(advisorKeys, adminKeys []string) *MemoryKeyStore {
	s := NewMemoryKeyStore()
	add := func(keys []string, roles ...string) {
		for _, k := range keys {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			hash := HashAPIKey(k)
			s.Add(&APIKey{ID: "key:" + hash[:8], Hash: hash, Roles: roles})
		}
	}
	add(advisorKeys, RoleAdvisor)
	add(adminKeys, RoleAdvisor, RoleAdmin)
	return s
}

// Add registers key, replacing any key with the same hash.
func (s *MemoryKeyStore) Add(key *APIKey) {
	s.mu.Lock()
	s.keys[key.Hash] = key
	s.mu.Unlock()
}

// Len returns the number of registered keys.
func (s *MemoryKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Lookup returns the key with hash, or nil.
func (s *MemoryKeyStore) Lookup(_ context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[hash], nil
}

// APIKeyAuthenticator validates X-API-Key headers.
type APIKeyAuthenticator struct {
	store KeyStore
	now   func() time.Time
}

// NewAPIKeyAuthenticator creates an authenticator backed by store.
func NewAPIKeyAuthenticator(store KeyStore) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{store: store, now: time.Now}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return string(MethodAPIKey)
}

// Supports reports whether the request has an API key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *Request) bool {
	return req.Get(APIKeyHeader) != ""
}

// Authenticate looks up the presented key by hash.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	raw := strings.TrimSpace(req.Get(APIKeyHeader))
	if raw == "" {
		return Failure(ErrMissingCredentials, MethodAPIKey), nil
	}

	key, err := a.store.Lookup(ctx, HashAPIKey(raw))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return Failure(ErrInvalidCredentials, MethodAPIKey), nil
	}
	if !key.ExpiresAt.IsZero() && a.now().After(key.ExpiresAt) {
		return Failure(ErrTokenExpired, MethodAPIKey), nil
	}

	return Success(&Identity{
		Principal: key.ID,
		Roles:     append([]string(nil), key.Roles...),
		Method:    MethodAPIKey,
		ExpiresAt: key.ExpiresAt,
	}), nil
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ KeyStore      = (*MemoryKeyStore)(nil)
)
