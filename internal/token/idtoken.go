package token

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// GenerateIDToken creates a signed HS256 JWT ID Token for the given params.
// ID tokens are not stored in the database; they are short-lived and
// non-revocable.
func (p *Provider) GenerateIDToken(params IDTokenParams) (string, error) {
	now := time.Now()
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = p.config.JWTExpiration
	}

	claims := jwt.MapClaims{
		"iss":       params.Issuer,
		"sub":       params.Subject,
		"aud":       params.Audience,
		"exp":       now.Add(expiry).Unix(),
		"iat":       now.Unix(),
		"auth_time": params.AuthTime.Unix(),
		"jti":       uuid.New().String(),
	}

	if params.Nonce != "" {
		claims["nonce"] = params.Nonce
	}
	if params.AtHash != "" {
		claims["at_hash"] = params.AtHash
	}
	if params.CHash != "" {
		claims["c_hash"] = params.CHash
	}
	if params.SessionState != "" {
		claims["session_state"] = params.SessionState
	}

	for k, v := range params.Claims {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(p.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return tokenString, nil
}

// EncryptIDToken wraps an already-signed ID token in a JWE using the first
// suitable public key from the client's registered JWK set. Used when the
// client registered an id_token encryption algorithm.
func EncryptIDToken(signed, clientJWKS, alg string) (string, error) {
	if clientJWKS == "" {
		return "", ErrNoEncryptionKey
	}
	set, err := jwk.Parse([]byte(clientJWKS))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoEncryptionKey, err)
	}
	key, ok := set.Key(0)
	if !ok {
		return "", ErrNoEncryptionKey
	}

	keyAlg := jwa.RSA_OAEP
	if alg != "" {
		keyAlg = jwa.KeyEncryptionAlgorithm(alg)
	}
	encrypted, err := jwe.Encrypt([]byte(signed),
		jwe.WithKey(keyAlg, key),
		jwe.WithContentEncryption(jwa.A128CBC_HS256),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIDTokenEncryption, err)
	}
	return string(encrypted), nil
}

// ComputeAtHash computes the at_hash claim value per OIDC Core 1.0 §3.3.2.11.
// at_hash = base64url( left-most 128 bits of SHA-256( ASCII(access_token) ) )
func ComputeAtHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}

// ComputeCHash computes the c_hash claim value for the authorization code,
// same construction as at_hash.
func ComputeCHash(code string) string {
	return ComputeAtHash(code)
}

// ScopeSet parses a space-separated scope string into a boolean lookup map.
func ScopeSet(scopes string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range strings.Fields(scopes) {
		set[s] = true
	}
	return set
}
