package token

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/permgate/permgate/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test infrastructure

func newTestProvider() *Provider {
	return NewProvider(&config.Config{
		BaseURL:                "http://localhost:8080",
		JWTSecret:              "test-secret-32-chars-long!!!!!!!",
		JWTExpiration:          time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
	})
}

// Access tokens

func TestGenerateToken_RoundTrip(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	result, err := p.GenerateToken(ctx, "user-1", "client-a", "read write", 0)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, result.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 5*time.Second)

	validated, err := p.ValidateToken(ctx, result.TokenString)
	require.NoError(t, err)
	assert.True(t, validated.Valid)
	assert.Equal(t, "user-1", validated.Subject)
	assert.Equal(t, "client-a", validated.ClientID)
	assert.Equal(t, "read write", validated.Scopes)
}

func TestGenerateToken_PerClientLifetime(t *testing.T) {
	p := newTestProvider()

	result, err := p.GenerateToken(context.Background(), "user-1", "client-a", "read", 5*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), result.ExpiresAt, 5*time.Second)
}

func TestValidateToken_Rejections(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := p.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewProvider(&config.Config{
			BaseURL: "http://localhost:8080", JWTSecret: "a-different-secret-entirely!!!!!",
			JWTExpiration: time.Hour,
		})
		foreign, err := other.GenerateToken(ctx, "user-1", "client-a", "read", 0)
		require.NoError(t, err)

		_, err = p.ValidateToken(ctx, foreign.TokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		result, err := p.GenerateToken(ctx, "user-1", "client-a", "read", -time.Minute)
		require.NoError(t, err)
		_, err = p.ValidateToken(ctx, result.TokenString)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		refresh, err := p.GenerateRefreshToken(ctx, "user-1", "client-a", "read")
		require.NoError(t, err)
		_, err = p.ValidateToken(ctx, refresh.TokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

// Refresh tokens

func TestValidateRefreshToken_TypeEnforcement(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	refresh, err := p.GenerateRefreshToken(ctx, "user-1", "client-a", "read")
	require.NoError(t, err)

	validated, err := p.ValidateRefreshToken(ctx, refresh.TokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", validated.Subject)

	// An access token presented as a refresh token must be rejected even
	// though the signature verifies.
	access, err := p.GenerateToken(ctx, "user-1", "client-a", "read", 0)
	require.NoError(t, err)
	_, err = p.ValidateRefreshToken(ctx, access.TokenString)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

// RPTs

func TestGenerateRPT_CarriesPermissionLines(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	lines := []PermissionLine{
		{ResourceSetID: "rs-1", Scopes: []string{"read"}},
		{ResourceSetID: "rs-2", Scopes: []string{"read", "write"}},
	}
	result, err := p.GenerateRPT(ctx, "client:client-a", "client-a", "read write", lines, 0)
	require.NoError(t, err)

	validated, err := p.ValidateToken(ctx, result.TokenString)
	require.NoError(t, err)

	carried, ok := validated.Claims["ticket"].([]any)
	require.True(t, ok, "rpt must carry its lines under the ticket claim")
	require.Len(t, carried, 2)
	first, ok := carried[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rs-1", first["resource_set_id"])
}

// ID tokens

func TestGenerateIDToken(t *testing.T) {
	p := newTestProvider()

	accessToken := "access-token-value"
	code := "authorization-code-value"
	idToken, err := p.GenerateIDToken(IDTokenParams{
		Issuer:   "http://localhost:8080",
		Subject:  "user-1",
		Audience: "client-a",
		AuthTime: time.Now(),
		Nonce:    "n-123",
		AtHash:   ComputeAtHash(accessToken),
		CHash:    ComputeCHash(code),
		Claims:   map[string]any{"email": "user@example.com", "sub": "attacker"},
	})
	require.NoError(t, err)

	parsed, err := jwt.Parse(idToken, func(*jwt.Token) (any, error) {
		return []byte("test-secret-32-chars-long!!!!!!!"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)

	assert.Equal(t, "user-1", claims["sub"], "derived claims must not override reserved ones")
	assert.Equal(t, "client-a", claims["aud"])
	assert.Equal(t, "n-123", claims["nonce"])
	assert.Equal(t, "user@example.com", claims["email"])

	// at_hash is the left half of SHA-256, base64url without padding.
	sum := sha256.Sum256([]byte(accessToken))
	expected := base64.RawURLEncoding.EncodeToString(sum[:16])
	assert.Equal(t, expected, claims["at_hash"])
	assert.NotEmpty(t, claims["c_hash"])
}

func TestScopeSet(t *testing.T) {
	set := ScopeSet("  read   write read ")
	assert.True(t, set["read"])
	assert.True(t, set["write"])
	assert.False(t, set["admin"])
	assert.Empty(t, ScopeSet(""))
}
