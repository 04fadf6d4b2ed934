package token

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/permgate/permgate/internal/config"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test infrastructure

func newEncryptingProvider() (*Provider, []byte) {
	cfg := &config.Config{
		BaseURL:       "http://localhost:8080",
		JWTSecret:     "test-secret-32-chars-long!!!!!!!",
		JWTExpiration: time.Hour,
		EncryptionKey: "server-encryption-passphrase",
	}
	kek := sha256.Sum256([]byte(cfg.EncryptionKey))
	return NewProvider(cfg), kek[:]
}

func encryptCompact(t *testing.T, signed string, kek []byte) string {
	t.Helper()
	encrypted, err := jwe.Encrypt([]byte(signed),
		jwe.WithKey(jwa.A256KW, kek),
		jwe.WithContentEncryption(jwa.A128CBC_HS256),
	)
	require.NoError(t, err)
	return string(encrypted)
}

// Envelope unwrapping

func TestDecode_PlainJWSPassesThrough(t *testing.T) {
	p := NewParser(&config.Config{})

	out, err := p.Decode("aaa.bbb.ccc")
	require.NoError(t, err)
	assert.Equal(t, "aaa.bbb.ccc", out)
}

func TestDecode_EncryptedRoundTrip(t *testing.T) {
	provider, kek := newEncryptingProvider()
	ctx := context.Background()

	result, err := provider.GenerateToken(ctx, "user-1", "client-a", "read", 0)
	require.NoError(t, err)

	wrapped := encryptCompact(t, result.TokenString, kek)
	require.NotEqual(t, result.TokenString, wrapped)

	inner, err := provider.parser.Decode(wrapped)
	require.NoError(t, err)
	assert.Equal(t, result.TokenString, inner)
}

func TestDecode_Rejections(t *testing.T) {
	provider, kek := newEncryptingProvider()

	t.Run("no key configured", func(t *testing.T) {
		bare := NewParser(&config.Config{})
		result, err := provider.GenerateToken(context.Background(), "user-1", "client-a", "read", 0)
		require.NoError(t, err)

		_, err = bare.Decode(encryptCompact(t, result.TokenString, kek))
		assert.ErrorIs(t, err, ErrNoDecryptionKey)
	})

	t.Run("wrong key", func(t *testing.T) {
		result, err := provider.GenerateToken(context.Background(), "user-1", "client-a", "read", 0)
		require.NoError(t, err)

		rogue := sha256.Sum256([]byte("some-other-passphrase"))
		wrapped := encryptCompact(t, result.TokenString, rogue[:])

		_, err = provider.parser.Decode(wrapped)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

// Validation through the envelope

func TestValidateToken_AcceptsEncryptedEnvelope(t *testing.T) {
	provider, kek := newEncryptingProvider()
	ctx := context.Background()

	result, err := provider.GenerateToken(ctx, "user-1", "client-a", "read write", 0)
	require.NoError(t, err)

	validated, err := provider.ValidateToken(ctx, encryptCompact(t, result.TokenString, kek))
	require.NoError(t, err)
	assert.True(t, validated.Valid)
	assert.Equal(t, "user-1", validated.Subject)
	assert.Equal(t, "client-a", validated.ClientID)
}
