package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refunds-backend/internal/infrastructure/secrets"
)

func newTestCredentialManager(t *testing.T) *CredentialManager {
	t.Helper()

	encryptor, err := secrets.NewEnvelopeEncryptor(
		"6368616e676520746869732070617373776f726420746f206120736563726574", "key-1")
	require.NoError(t, err)

	store := secrets.NewEncryptedStore(encryptor, secrets.NewMemoryBackend())
	return NewCredentialManager(store, time.Minute)
}

func TestCredentialManagerPutThenGet(t *testing.T) {
	m := newTestCredentialManager(t)
	ctx := context.Background()

	creds := Credentials{APIKey: "sk_live_1", WebhookSecret: "whsec_1"}
	require.NoError(t, m.Put(ctx, TypeStripe, "m-1", creds))

	got, err := m.Get(ctx, TypeStripe, "m-1")
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestCredentialManagerUnseededMerchant(t *testing.T) {
	m := newTestCredentialManager(t)

	_, err := m.Get(context.Background(), TypeStripe, "m-unknown")
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestCredentialManagerRotationInvalidatesCache(t *testing.T) {
	m := newTestCredentialManager(t)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, TypeStripe, "m-1", Credentials{APIKey: "sk_old"}))
	first, err := m.Get(ctx, TypeStripe, "m-1")
	require.NoError(t, err)
	require.Equal(t, "sk_old", first.APIKey)

	// Rotation bumps the stored version; the cached copy must not win.
	require.NoError(t, m.Put(ctx, TypeStripe, "m-1", Credentials{APIKey: "sk_new"}))
	rotated, err := m.Get(ctx, TypeStripe, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "sk_new", rotated.APIKey)
}

func TestCredentialManagerIsolatesMerchants(t *testing.T) {
	m := newTestCredentialManager(t)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, TypeStripe, "m-1", Credentials{APIKey: "sk_m1"}))
	require.NoError(t, m.Put(ctx, TypeStripe, "m-2", Credentials{APIKey: "sk_m2"}))

	one, err := m.Get(ctx, TypeStripe, "m-1")
	require.NoError(t, err)
	two, err := m.Get(ctx, TypeStripe, "m-2")
	require.NoError(t, err)

	assert.Equal(t, "sk_m1", one.APIKey)
	assert.Equal(t, "sk_m2", two.APIKey)
}
