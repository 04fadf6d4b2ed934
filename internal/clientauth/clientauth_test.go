package clientauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/metrics"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test infrastructure

func newAuthTestEnv(t *testing.T) (*store.Store, *Authenticator) {
	t.Helper()
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	cfg := &config.Config{
		ClientAssertionMaxSkew: 30 * time.Second,
		JWKSFetchTimeout:       5 * time.Second,
	}
	return s, NewAuthenticator(s, cfg, metrics.NewNoopMetrics())
}

func registerClient(t *testing.T, s *store.Store, clientType string) (*models.Client, string) {
	t.Helper()
	client := &models.Client{
		ClientID:      uuid.New().String(),
		ClientName:    "Auth Test Client",
		Scopes:        "read",
		GrantTypes:    "client_credentials",
		ResponseTypes: "token",
		ClientType:    clientType,
		IsActive:      true,
	}
	secret, err := client.GenerateClientSecret(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.CreateClient(client))
	return client, secret
}

// Secret-based methods

func TestAuthenticate_SecretMethods(t *testing.T) {
	s, a := newAuthTestEnv(t)
	client, secret := registerClient(t, s, models.ClientTypeConfidential)
	ctx := context.Background()

	t.Run("client_secret_basic", func(t *testing.T) {
		got, err := a.Authenticate(ctx, Instruction{
			BasicClientID: client.ClientID, BasicClientSecret: secret,
		})
		require.NoError(t, err)
		assert.Equal(t, client.ClientID, got.ClientID)
	})

	t.Run("client_secret_post", func(t *testing.T) {
		got, err := a.Authenticate(ctx, Instruction{
			PostClientID: client.ClientID, PostClientSecret: secret,
		})
		require.NoError(t, err)
		assert.Equal(t, client.ClientID, got.ClientID)
	})

	t.Run("basic takes precedence over post", func(t *testing.T) {
		other, otherSecret := registerClient(t, s, models.ClientTypeConfidential)
		got, err := a.Authenticate(ctx, Instruction{
			BasicClientID: client.ClientID, BasicClientSecret: secret,
			PostClientID: other.ClientID, PostClientSecret: otherSecret,
		})
		require.NoError(t, err)
		assert.Equal(t, client.ClientID, got.ClientID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := a.Authenticate(ctx, Instruction{
			BasicClientID: client.ClientID, BasicClientSecret: "wrong",
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := a.Authenticate(ctx, Instruction{
			BasicClientID: "ghost", BasicClientSecret: "whatever",
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("disabled client", func(t *testing.T) {
		disabled, dsecret := registerClient(t, s, models.ClientTypeConfidential)
		disabled.IsActive = false
		require.NoError(t, s.UpdateClient(disabled))

		_, err := a.Authenticate(ctx, Instruction{
			BasicClientID: disabled.ClientID, BasicClientSecret: dsecret,
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}

// Public clients

func TestAuthenticate_PublicClients(t *testing.T) {
	s, a := newAuthTestEnv(t)
	ctx := context.Background()

	t.Run("bare client_id on a public client", func(t *testing.T) {
		public, _ := registerClient(t, s, models.ClientTypePublic)
		got, err := a.Authenticate(ctx, Instruction{PostClientID: public.ClientID})
		require.NoError(t, err)
		assert.Equal(t, public.ClientID, got.ClientID)
	})

	t.Run("bare client_id on a confidential client", func(t *testing.T) {
		confidential, _ := registerClient(t, s, models.ClientTypeConfidential)
		_, err := a.Authenticate(ctx, Instruction{PostClientID: confidential.ClientID})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("no identification at all", func(t *testing.T) {
		_, err := a.Authenticate(ctx, Instruction{})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}

// private_key_jwt

func TestAuthenticate_PrivateKeyJWT(t *testing.T) {
	s, a := newAuthTestEnv(t)
	ctx := context.Background()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := jwk.FromRaw(key.Public())
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "assert-key-1"))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	jwksJSON, err := json.Marshal(set)
	require.NoError(t, err)

	client := &models.Client{
		ClientID:      uuid.New().String(),
		ClientName:    "JWT Client",
		Scopes:        "read",
		GrantTypes:    "client_credentials",
		ResponseTypes: "token",
		ClientType:    models.ClientTypeConfidential,
		JWKS:          string(jwksJSON),
		IsActive:      true,
	}
	_, err = client.GenerateClientSecret(ctx)
	require.NoError(t, err)
	require.NoError(t, s.CreateClient(client))

	makeAssertion := func(t *testing.T, signWith *rsa.PrivateKey, claims jwt.MapClaims) string {
		t.Helper()
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "assert-key-1"
		signed, err := tok.SignedString(signWith)
		require.NoError(t, err)
		return signed
	}

	validClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": client.ClientID,
			"sub": client.ClientID,
			"aud": "http://localhost:8080/oauth/token",
			"exp": time.Now().Add(time.Minute).Unix(),
			"jti": uuid.New().String(),
		}
	}

	t.Run("valid assertion", func(t *testing.T) {
		got, err := a.Authenticate(ctx, Instruction{
			ClientAssertionType: JWTBearerAssertionType,
			ClientAssertion:     makeAssertion(t, key, validClaims()),
		})
		require.NoError(t, err)
		assert.Equal(t, client.ClientID, got.ClientID)
	})

	t.Run("assertion signed with the wrong key", func(t *testing.T) {
		rogue, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = a.Authenticate(ctx, Instruction{
			ClientAssertionType: JWTBearerAssertionType,
			ClientAssertion:     makeAssertion(t, rogue, validClaims()),
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("expired assertion", func(t *testing.T) {
		claims := validClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		_, err := a.Authenticate(ctx, Instruction{
			ClientAssertionType: JWTBearerAssertionType,
			ClientAssertion:     makeAssertion(t, key, claims),
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("subject naming a different client", func(t *testing.T) {
		claims := validClaims()
		claims["sub"] = "someone-else"
		_, err := a.Authenticate(ctx, Instruction{
			ClientAssertionType: JWTBearerAssertionType,
			ClientAssertion:     makeAssertion(t, key, claims),
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("wrong assertion type", func(t *testing.T) {
		_, err := a.Authenticate(ctx, Instruction{
			ClientAssertionType: "urn:example:wrong",
			ClientAssertion:     makeAssertion(t, key, validClaims()),
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}

// mTLS certificates

// newTestCertificate mints a self-signed certificate for mTLS tests.
func newTestCertificate(t *testing.T, commonName string) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestAuthenticate_Certificate(t *testing.T) {
	s, a := newAuthTestEnv(t)
	ctx := context.Background()

	cert := newTestCertificate(t, "client-mtls")
	sum := sha256.Sum256(cert.Raw)

	client, _ := registerClient(t, s, models.ClientTypeConfidential)
	client.X509Thumbprint = base64.RawURLEncoding.EncodeToString(sum[:])
	require.NoError(t, s.UpdateClient(client))

	t.Run("registered certificate", func(t *testing.T) {
		got, err := a.Authenticate(ctx, Instruction{Certificate: cert})
		require.NoError(t, err)
		assert.Equal(t, client.ClientID, got.ClientID)
	})

	t.Run("unknown certificate", func(t *testing.T) {
		_, err := a.Authenticate(ctx, Instruction{
			Certificate: newTestCertificate(t, "someone-else"),
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}
