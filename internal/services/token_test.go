package services

import (
	"context"
	"testing"
	"time"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/metrics"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
	"github.com/permgate/permgate/internal/token"
	"github.com/permgate/permgate/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Test infrastructure

func newTokenTestEnv(t *testing.T) (*store.Store, *config.Config, *TokenService) {
	t.Helper()

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	cfg := &config.Config{
		BaseURL:                "http://localhost:8080",
		JWTSecret:              "test-secret-32-chars-long!!!!!!!",
		JWTExpiration:          time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
		AuthCodeExpiration:     10 * time.Minute,
		DeviceCodeExpiration:   30 * time.Minute,
		SessionSaltLen:         16,
	}

	publisher := events.NewPublisher(s, false, 0)
	noop := metrics.NewNoopMetrics()
	provider := token.NewProvider(cfg)
	deviceService := NewDeviceService(s, cfg, publisher, noop)
	tokenService := NewTokenService(
		s, cfg, provider, deviceService,
		[]core.ResourceOwnerAuthenticator{NewLocalResourceOwnerAuthenticator(s)},
		publisher, noop,
	)
	return s, cfg, tokenService
}

func createTestClient(t *testing.T, s *store.Store, grantTypes, scopes string) *models.Client {
	t.Helper()
	client := &models.Client{
		ClientID:      uuid.New().String(),
		ClientSecret:  "unused-hash",
		ClientName:    "Test Client",
		Scopes:        scopes,
		GrantTypes:    grantTypes,
		ResponseTypes: "code token id_token",
		RedirectURIs:  models.StringArray{"https://client.example/callback"},
		ClientType:    models.ClientTypeConfidential,
		IsActive:      true,
	}
	require.NoError(t, s.CreateClient(client))
	return client
}

func createTestUser(t *testing.T, s *store.Store, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		FullName:     "Test User",
	}
	require.NoError(t, s.CreateUser(user))
	return user
}

func createTestAuthCode(
	t *testing.T,
	s *store.Store,
	client *models.Client,
	userID, plainCode, challenge, method string,
) *models.AuthorizationCode {
	t.Helper()
	record := &models.AuthorizationCode{
		UUID:                uuid.New().String(),
		CodeHash:            util.SHA256Hex(plainCode),
		CodePrefix:          plainCode[:8],
		ClientID:            client.ClientID,
		UserID:              userID,
		RedirectURI:         "https://client.example/callback",
		Scopes:              "read",
		IDTokenPayload:      models.JSONMap{"sub": userID},
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.CreateAuthorizationCode(record))
	return record
}

// Client credentials

func TestIssueClientCredentialsToken_ReusesValidToken(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "client_credentials", "read write")
	ctx := context.Background()

	first, err := ts.IssueClientCredentialsToken(ctx, client, "read")
	require.NoError(t, err)
	require.NotEmpty(t, first.Token)

	second, err := ts.IssueClientCredentialsToken(ctx, client, "read")
	require.NoError(t, err)

	assert.Equal(t, first.Token, second.Token, "back-to-back requests must reuse the valid token")
	assert.Equal(t, first.ID, second.ID)
}

func TestIssueClientCredentialsToken_DistinctScopesMintDistinctTokens(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "client_credentials", "read write")
	ctx := context.Background()

	readToken, err := ts.IssueClientCredentialsToken(ctx, client, "read")
	require.NoError(t, err)
	writeToken, err := ts.IssueClientCredentialsToken(ctx, client, "write")
	require.NoError(t, err)

	assert.NotEqual(t, readToken.Token, writeToken.Token)
}

func TestIssueClientCredentialsToken_Validation(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	ctx := context.Background()

	t.Run("grant not enabled", func(t *testing.T) {
		client := createTestClient(t, s, "authorization_code", "read")
		_, err := ts.IssueClientCredentialsToken(ctx, client, "read")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("scope required", func(t *testing.T) {
		client := createTestClient(t, s, "client_credentials", "read")
		_, err := ts.IssueClientCredentialsToken(ctx, client, "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("scope exceeds registration", func(t *testing.T) {
		client := createTestClient(t, s, "client_credentials", "read")
		_, err := ts.IssueClientCredentialsToken(ctx, client, "read admin")
		assert.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("no refresh token issued", func(t *testing.T) {
		client := createTestClient(t, s, "client_credentials", "read")
		granted, err := ts.IssueClientCredentialsToken(ctx, client, "read")
		require.NoError(t, err)
		assert.Empty(t, granted.RefreshToken)
	})
}

// Password grant

func TestIssuePasswordToken(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "password", "read write")
	user := createTestUser(t, s, "alice", "correct horse")
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		granted, err := ts.IssuePasswordToken(ctx, client, "alice", "correct horse", "read")
		require.NoError(t, err)
		assert.Equal(t, user.ID, granted.UserID)
		assert.NotEmpty(t, granted.Token)
		assert.NotEmpty(t, granted.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := ts.IssuePasswordToken(ctx, client, "alice", "wrong", "read")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := ts.IssuePasswordToken(ctx, client, "nobody", "whatever", "read")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("missing parameters", func(t *testing.T) {
		_, err := ts.IssuePasswordToken(ctx, client, "alice", "", "read")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

// Authorization code exchange

func TestExchangeAuthorizationCode_SingleUse(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "authorization_code", "read")
	user := createTestUser(t, s, "bob", "pw")
	plainCode := "0123456789abcdef0123456789abcdef"
	createTestAuthCode(t, s, client, user.ID, plainCode, "", "")
	ctx := context.Background()

	granted, err := ts.ExchangeAuthorizationCode(ctx, client, plainCode, "https://client.example/callback", "")
	require.NoError(t, err)
	assert.NotEmpty(t, granted.Token)

	_, err = ts.ExchangeAuthorizationCode(ctx, client, plainCode, "https://client.example/callback", "")
	assert.ErrorIs(t, err, ErrInvalidGrant, "second redemption must fail")
}

func TestExchangeAuthorizationCode_WrongClientHidesCode(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	owner := createTestClient(t, s, "authorization_code", "read")
	other := createTestClient(t, s, "authorization_code", "read")
	user := createTestUser(t, s, "carol", "pw")
	plainCode := "feedfacefeedfacefeedfacefeedface"
	createTestAuthCode(t, s, owner, user.ID, plainCode, "", "")

	_, err := ts.ExchangeAuthorizationCode(
		context.Background(), other, plainCode, "https://client.example/callback", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestExchangeAuthorizationCode_PKCE(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	user := createTestUser(t, s, "dave", "pw")
	ctx := context.Background()

	t.Run("S256 verifier matches", func(t *testing.T) {
		client := createTestClient(t, s, "authorization_code", "read")
		verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		// base64url(sha256(verifier))
		challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
		plainCode := "aaaa0000111122223333444455556666"
		createTestAuthCode(t, s, client, user.ID, plainCode, challenge, "S256")

		granted, err := ts.ExchangeAuthorizationCode(
			ctx, client, plainCode, "https://client.example/callback", verifier)
		require.NoError(t, err)
		assert.NotEmpty(t, granted.Token)
	})

	t.Run("S256 verifier mismatch", func(t *testing.T) {
		client := createTestClient(t, s, "authorization_code", "read")
		challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
		plainCode := "bbbb0000111122223333444455556666"
		createTestAuthCode(t, s, client, user.ID, plainCode, challenge, "S256")

		_, err := ts.ExchangeAuthorizationCode(
			ctx, client, plainCode, "https://client.example/callback", "not-the-verifier")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("client requires PKCE but code has no challenge", func(t *testing.T) {
		client := createTestClient(t, s, "authorization_code", "read")
		client.RequirePKCE = true
		require.NoError(t, s.UpdateClient(client))
		plainCode := "cccc0000111122223333444455556666"
		createTestAuthCode(t, s, client, user.ID, plainCode, "", "")

		_, err := ts.ExchangeAuthorizationCode(
			ctx, client, plainCode, "https://client.example/callback", "")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})
}

// Refresh grant

func TestRefreshAccessToken_ClientIsolation(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	owner := createTestClient(t, s, "password refresh_token", "read")
	stranger := createTestClient(t, s, "password refresh_token", "read")
	createTestUser(t, s, "erin", "pw")
	ctx := context.Background()

	granted, err := ts.IssuePasswordToken(ctx, owner, "erin", "pw", "read")
	require.NoError(t, err)
	require.NotEmpty(t, granted.RefreshToken)

	// A syntactically valid refresh token redeemed by a different client
	// must be rejected.
	_, err = ts.RefreshAccessToken(ctx, stranger, granted.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	// The owning client still succeeds.
	refreshed, err := ts.RefreshAccessToken(ctx, owner, granted.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, granted.Token, refreshed.Token)
	assert.Equal(t, granted.ID, refreshed.ParentTokenID)
}

func TestRefreshAccessToken_ScopeNarrowing(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "password refresh_token", "read write")
	createTestUser(t, s, "frank", "pw")
	ctx := context.Background()

	granted, err := ts.IssuePasswordToken(ctx, client, "frank", "pw", "read write")
	require.NoError(t, err)

	t.Run("narrowed scope is honored", func(t *testing.T) {
		refreshed, err := ts.RefreshAccessToken(ctx, client, granted.RefreshToken, "read")
		require.NoError(t, err)
		assert.Equal(t, "read", refreshed.Scopes)
	})

	t.Run("widened scope is rejected", func(t *testing.T) {
		granted2, err := ts.IssuePasswordToken(ctx, client, "frank", "pw", "read")
		require.NoError(t, err)
		_, err = ts.RefreshAccessToken(ctx, client, granted2.RefreshToken, "read write")
		assert.ErrorIs(t, err, ErrInvalidScope)
	})
}

func TestRefreshAccessToken_RotationRevokesParent(t *testing.T) {
	s, cfg, ts := newTokenTestEnv(t)
	cfg.EnableTokenRotation = true
	client := createTestClient(t, s, "password refresh_token", "read")
	createTestUser(t, s, "grace", "pw")
	ctx := context.Background()

	granted, err := ts.IssuePasswordToken(ctx, client, "grace", "pw", "read")
	require.NoError(t, err)

	_, err = ts.RefreshAccessToken(ctx, client, granted.RefreshToken, "")
	require.NoError(t, err)

	parent, err := s.GetTokenByID(granted.ID)
	require.NoError(t, err)
	assert.True(t, parent.IsRevoked(), "rotation mode must revoke the redeemed parent")

	_, err = ts.RefreshAccessToken(ctx, client, granted.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidGrant, "rotated refresh token must not be redeemable twice")
}

// Validation and revocation

func TestValidateToken(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "client_credentials", "read")
	ctx := context.Background()

	granted, err := ts.IssueClientCredentialsToken(ctx, client, "read")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		result, err := ts.ValidateToken(ctx, granted.Token)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, client.ClientID, result.ClientID)
		assert.Equal(t, "client:"+client.ClientID, result.Subject)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := ts.ValidateToken(ctx, "not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, s.RevokeToken(granted.ID))
		_, err := ts.ValidateToken(ctx, granted.Token)
		assert.Error(t, err)
	})
}

func TestRevokeToken(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(t, s, "client_credentials", "read")
	other := createTestClient(t, s, "client_credentials", "read")
	ctx := context.Background()

	t.Run("unknown token is not an error", func(t *testing.T) {
		assert.NoError(t, ts.RevokeToken(ctx, client, "no-such-token"))
	})

	t.Run("cross-client revocation is a silent no-op", func(t *testing.T) {
		granted, err := ts.IssueClientCredentialsToken(ctx, client, "read")
		require.NoError(t, err)

		require.NoError(t, ts.RevokeToken(ctx, other, granted.Token))
		row, err := s.GetTokenByID(granted.ID)
		require.NoError(t, err)
		assert.True(t, row.IsActive(), "another client must not revoke the token")
	})

	t.Run("owner revokes by refresh token value", func(t *testing.T) {
		client2 := createTestClient(t, s, "password refresh_token", "read")
		createTestUser(t, s, "heidi", "pw")
		granted, err := ts.IssuePasswordToken(ctx, client2, "heidi", "pw", "read")
		require.NoError(t, err)

		require.NoError(t, ts.RevokeToken(ctx, client2, granted.RefreshToken))
		row, err := s.GetTokenByID(granted.ID)
		require.NoError(t, err)
		assert.True(t, row.IsRevoked())
	})
}

// Device code exchange

func TestExchangeDeviceCode(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(
		t, s, "urn:ietf:params:oauth:grant-type:device_code", "read")
	user := createTestUser(t, s, "ivan", "pw")
	ctx := context.Background()

	dc, err := ts.deviceService.GenerateDeviceCode(ctx, client, "read")
	require.NoError(t, err)

	t.Run("pending before approval", func(t *testing.T) {
		_, err := ts.ExchangeDeviceCode(ctx, client, dc.DeviceCode)
		assert.ErrorIs(t, err, ErrAuthorizationPending)
	})

	t.Run("issues after approval and deletes the code", func(t *testing.T) {
		require.NoError(t, ts.deviceService.AuthorizeDeviceCode(ctx, dc.UserCode, user.ID))

		granted, err := ts.ExchangeDeviceCode(ctx, client, dc.DeviceCode)
		require.NoError(t, err)
		assert.Equal(t, user.ID, granted.UserID)

		_, err = ts.ExchangeDeviceCode(ctx, client, dc.DeviceCode)
		assert.ErrorIs(t, err, ErrInvalidGrant, "device code must be single-use")
	})
}
