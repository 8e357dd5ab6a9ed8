package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"refunds-backend/internal/infrastructure/secrets"
)

// =====================================================
// CREDENTIAL MANAGER
// =====================================================

// CredentialManager fetches per-merchant gateway secrets from the secret
// store and keeps decrypted copies in a short-TTL in-process cache.
// The cache entry remembers the secret version so a rotation observed in
// the store invalidates it on the next fetch.
type CredentialManager struct {
	store secrets.Store
	cache *gocache.Cache
	ttl   time.Duration
}

type cachedCredentials struct {
	creds   Credentials
	version int64
}

func NewCredentialManager(store secrets.Store, ttl time.Duration) *CredentialManager {
	return &CredentialManager{
		store: store,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func credentialKey(gatewayType, merchantID string) string {
	return fmt.Sprintf("gateway:%s:%s", gatewayType, merchantID)
}

// Get returns the credentials for (merchant, gateway).
func (m *CredentialManager) Get(ctx context.Context, gatewayType, merchantID string) (Credentials, error) {
	key := credentialKey(gatewayType, merchantID)

	version, err := m.store.Version(ctx, key)
	if err != nil {
		return Credentials{}, fmt.Errorf("credential version %s: %w", key, err)
	}

	if entry, found := m.cache.Get(key); found {
		cached := entry.(cachedCredentials)
		if cached.version == version {
			return cached.creds, nil
		}
		// Rotated since it was cached.
		m.cache.Delete(key)
	}

	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return Credentials{}, fmt.Errorf("fetch credentials %s: %w", key, err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials %s: %w", key, err)
	}

	m.cache.Set(key, cachedCredentials{creds: creds, version: version}, m.ttl)
	return creds, nil
}

// Put provisions or rotates the credentials for (merchant, gateway).
// The store bumps the secret version, so other nodes drop their cached
// copy on the next fetch.
func (m *CredentialManager) Put(ctx context.Context, gatewayType, merchantID string, creds Credentials) error {
	key := credentialKey(gatewayType, merchantID)

	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials %s: %w", key, err)
	}
	if err := m.store.Put(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("store credentials %s: %w", key, err)
	}

	m.Invalidate(gatewayType, merchantID)
	return nil
}

// Invalidate drops the cached entry, used by rotation events.
func (m *CredentialManager) Invalidate(gatewayType, merchantID string) {
	m.cache.Delete(credentialKey(gatewayType, merchantID))
}
