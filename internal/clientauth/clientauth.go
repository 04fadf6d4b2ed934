package clientauth

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
)

// ErrInvalidClient indicates no authentication method could resolve a client
var ErrInvalidClient = errors.New("client authentication failed")

// JWTBearerAssertionType is the client_assertion_type for private_key_jwt.
const JWTBearerAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Instruction carries everything the HTTP layer extracted from a request
// that could identify a client. Located fields are tried in a fixed order:
// client_secret_basic, client_secret_post, private_key_jwt, then the mTLS
// certificate.
type Instruction struct {
	// Authorization: Basic header
	BasicClientID     string
	BasicClientSecret string

	// POST body credentials
	PostClientID     string
	PostClientSecret string

	// private_key_jwt assertion
	ClientAssertionType string
	ClientAssertion     string

	// TLS peer certificate, when the request arrived over mTLS
	Certificate *x509.Certificate
}

// Authenticator resolves a request to a registered client. Pure lookup and
// verification; no side effects beyond metrics.
type Authenticator struct {
	store   *store.Store
	config  *config.Config
	metrics core.Recorder
}

func NewAuthenticator(s *store.Store, cfg *config.Config, m core.Recorder) *Authenticator {
	return &Authenticator{store: s, config: cfg, metrics: m}
}

// Authenticate tries each authentication method in order; the first
// successful match wins. Returns ErrInvalidClient when none match.
func (a *Authenticator) Authenticate(ctx context.Context, instr Instruction) (*models.Client, error) {
	type method struct {
		name string
		fn   func(context.Context, Instruction) (*models.Client, error)
	}
	methods := []method{
		{"client_secret_basic", a.authenticateBasic},
		{"client_secret_post", a.authenticatePost},
		{"private_key_jwt", a.authenticateAssertion},
		{"tls_client_auth", a.authenticateThumbprint},
		{"none", a.authenticatePublic},
	}

	for _, m := range methods {
		client, err := m.fn(ctx, instr)
		if err != nil {
			if !errors.Is(err, errMethodNotApplicable) {
				log.Printf("[ClientAuth] %s failed: %v", m.name, err)
				a.metrics.RecordClientAuthentication(m.name, false)
			}
			continue
		}
		if !client.IsActive {
			a.metrics.RecordClientAuthentication(m.name, false)
			return nil, fmt.Errorf("%w: client disabled", ErrInvalidClient)
		}
		a.metrics.RecordClientAuthentication(m.name, true)
		return client, nil
	}
	return nil, ErrInvalidClient
}

// errMethodNotApplicable marks a method whose inputs were absent, as opposed
// to present-but-wrong credentials.
var errMethodNotApplicable = errors.New("method not applicable")

func (a *Authenticator) authenticateBasic(ctx context.Context, instr Instruction) (*models.Client, error) {
	if instr.BasicClientID == "" {
		return nil, errMethodNotApplicable
	}
	return a.verifySecret(instr.BasicClientID, instr.BasicClientSecret)
}

func (a *Authenticator) authenticatePost(ctx context.Context, instr Instruction) (*models.Client, error) {
	if instr.PostClientID == "" || instr.PostClientSecret == "" {
		return nil, errMethodNotApplicable
	}
	return a.verifySecret(instr.PostClientID, instr.PostClientSecret)
}

func (a *Authenticator) verifySecret(clientID, secret string) (*models.Client, error) {
	client, err := a.store.GetClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if !client.ValidateClientSecret([]byte(secret)) {
		return nil, fmt.Errorf("%w: bad secret", ErrInvalidClient)
	}
	return client, nil
}

// authenticatePublic admits a public client that identified itself with a
// bare client_id and no credentials (RFC 6749 §2.3). Confidential clients
// never pass through here: any presented credential makes an earlier method
// applicable, and a bare client_id on a confidential client is rejected.
func (a *Authenticator) authenticatePublic(ctx context.Context, instr Instruction) (*models.Client, error) {
	if instr.PostClientID == "" || instr.PostClientSecret != "" ||
		instr.BasicClientID != "" || instr.ClientAssertion != "" {
		return nil, errMethodNotApplicable
	}
	client, err := a.store.GetClient(instr.PostClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if client.ClientType != models.ClientTypePublic {
		return nil, fmt.Errorf("%w: confidential client must authenticate", ErrInvalidClient)
	}
	return client, nil
}

// authenticateAssertion validates a private_key_jwt client assertion against
// the client's registered JWK set (inline or fetched from its jwks_uri).
func (a *Authenticator) authenticateAssertion(ctx context.Context, instr Instruction) (*models.Client, error) {
	if instr.ClientAssertion == "" {
		return nil, errMethodNotApplicable
	}
	if instr.ClientAssertionType != JWTBearerAssertionType {
		return nil, fmt.Errorf("%w: unsupported assertion type", ErrInvalidClient)
	}

	// The issuer names the client; we need it before we can pick keys.
	unverified, _, err := jwt.NewParser().ParseUnverified(instr.ClientAssertion, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: malformed assertion", ErrInvalidClient)
	}
	issuer, err := unverified.Claims.GetIssuer()
	if err != nil || issuer == "" {
		return nil, fmt.Errorf("%w: assertion has no issuer", ErrInvalidClient)
	}

	client, err := a.store.GetClient(issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}

	set, err := a.clientKeySet(ctx, client)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse(instr.ClientAssertion,
		keyfuncFromSet(set),
		jwt.WithIssuer(client.ClientID),
		jwt.WithSubject(client.ClientID),
		jwt.WithLeeway(a.config.ClientAssertionMaxSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: assertion verification failed: %v", ErrInvalidClient, err)
	}
	return client, nil
}

func (a *Authenticator) clientKeySet(ctx context.Context, client *models.Client) (jwk.Set, error) {
	if client.JWKS != "" {
		set, err := jwk.Parse([]byte(client.JWKS))
		if err != nil {
			return nil, fmt.Errorf("%w: bad registered jwks", ErrInvalidClient)
		}
		return set, nil
	}
	if client.JWKSURI != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, a.config.JWKSFetchTimeout)
		defer cancel()
		set, err := jwk.Fetch(fetchCtx, client.JWKSURI)
		if err != nil {
			return nil, fmt.Errorf("%w: jwks_uri fetch failed: %v", ErrInvalidClient, err)
		}
		return set, nil
	}
	return nil, fmt.Errorf("%w: client registered no keys", ErrInvalidClient)
}

func keyfuncFromSet(set jwk.Set) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		var key jwk.Key
		if kid != "" {
			k, ok := set.LookupKeyID(kid)
			if !ok {
				return nil, errors.New("no key matches kid")
			}
			key = k
		} else {
			if set.Len() != 1 {
				return nil, errors.New("assertion has no kid and key set is ambiguous")
			}
			key, _ = set.Key(0)
		}
		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
}

func (a *Authenticator) authenticateThumbprint(ctx context.Context, instr Instruction) (*models.Client, error) {
	if instr.Certificate == nil {
		return nil, errMethodNotApplicable
	}
	sum := sha256.Sum256(instr.Certificate.Raw)
	thumbprint := base64.RawURLEncoding.EncodeToString(sum[:])
	client, err := a.store.GetClientByThumbprint(thumbprint)
	if err != nil {
		return nil, fmt.Errorf("%w: no client matches certificate", ErrInvalidClient)
	}
	if !client.ValidateCertificate(instr.Certificate) {
		return nil, fmt.Errorf("%w: certificate mismatch", ErrInvalidClient)
	}
	return client, nil
}
