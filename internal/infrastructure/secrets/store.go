package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSecretNotFound is returned when no secret exists under a name.
var ErrSecretNotFound = errors.New("secret not found")

// Store is the secret store contract the credential manager depends on.
// Values are envelope-encrypted at rest.
type Store interface {
	// Get returns the decrypted secret value.
	Get(ctx context.Context, name string) (string, error)

	// Put stores a secret, sealing it with the envelope encryptor.
	Put(ctx context.Context, name, value string) error

	// Version returns a counter bumped on every write to name.
	// Credential caches compare versions to detect rotation.
	Version(ctx context.Context, name string) (int64, error)
}

// Backend persists sealed envelopes. It never sees plaintext; the
// EncryptedStore seals before Save and opens after Load.
type Backend interface {
	// Load returns the stored envelope and its version, or
	// ErrSecretNotFound.
	Load(ctx context.Context, name string) (envelope string, version int64, err error)

	// Save upserts the envelope and returns the new version.
	Save(ctx context.Context, name, envelope string) (int64, error)

	// Version returns the current version without loading the envelope.
	Version(ctx context.Context, name string) (int64, error)
}

// EncryptedStore is the envelope-encryption layer over a Backend.
type EncryptedStore struct {
	encryptor *EnvelopeEncryptor
	backend   Backend
}

func NewEncryptedStore(encryptor *EnvelopeEncryptor, backend Backend) *EncryptedStore {
	return &EncryptedStore{
		encryptor: encryptor,
		backend:   backend,
	}
}

func (s *EncryptedStore) Get(ctx context.Context, name string) (string, error) {
	envelope, _, err := s.backend.Load(ctx, name)
	if err != nil {
		return "", err
	}

	value, err := s.encryptor.DecryptString(envelope)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %s: %w", name, err)
	}

	return value, nil
}

func (s *EncryptedStore) Put(ctx context.Context, name, value string) error {
	envelope, err := s.encryptor.EncryptString(value)
	if err != nil {
		return fmt.Errorf("encrypt secret %s: %w", name, err)
	}

	if _, err := s.backend.Save(ctx, name, envelope); err != nil {
		return err
	}
	return nil
}

func (s *EncryptedStore) Version(ctx context.Context, name string) (int64, error) {
	return s.backend.Version(ctx, name)
}

// MemoryBackend keeps envelopes in process memory. Development and
// tests only.
type MemoryBackend struct {
	mu        sync.RWMutex
	envelopes map[string]string
	versions  map[string]int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		envelopes: make(map[string]string),
		versions:  make(map[string]int64),
	}
}

func (b *MemoryBackend) Load(ctx context.Context, name string) (string, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	envelope, ok := b.envelopes[name]
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return envelope, b.versions[name], nil
}

func (b *MemoryBackend) Save(ctx context.Context, name, envelope string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.envelopes[name] = envelope
	b.versions[name]++
	return b.versions[name], nil
}

func (b *MemoryBackend) Version(ctx context.Context, name string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.versions[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}
