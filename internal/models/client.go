package models

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"database/sql/driver"
	"encoding/base32"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/permgate/permgate/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// Base32 characters, but lowercased.
const lowerBase32Chars = "abcdefghijklmnopqrstuvwxyz234567"

// base32 encoder that uses lowered characters without padding.
var base32Lower = base32.NewEncoding(lowerBase32Chars).WithPadding(base32.NoPadding)

// Client type constants
const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"
)

// Client is a registered OAuth2/OIDC relying party. Created and updated by
// the external management API; read-only to the token core.
type Client struct {
	ID            int64       `gorm:"primaryKey;autoIncrement"`
	ClientID      string      `gorm:"uniqueIndex;not null"`
	ClientSecret  string      `gorm:"not null"` // bcrypt hashed shared secret
	ClientName    string      `gorm:"not null"`
	Description   string      `gorm:"type:text"`
	Scopes        string      `gorm:"not null"` // space-separated scopes
	GrantTypes    string      `gorm:"not null;default:'authorization_code'"`
	ResponseTypes string      `gorm:"not null;default:'code'"`
	RedirectURIs  StringArray `gorm:"type:json"`
	ClientType    string      `gorm:"not null;default:'confidential'"` // "confidential" or "public"

	// Token preferences
	TokenLifetimeSeconds int64  `gorm:"not null;default:0"` // 0 = server default
	IDTokenSignedAlg     string `gorm:"not null;default:'HS256'"`
	IDTokenEncryptedAlg  string // empty = no encryption

	// private_key_jwt assertion verification material
	JWKS    string `gorm:"type:text"` // inline JSON Web Key Set
	JWKSURI string

	// mTLS authentication: SHA-256 thumbprint of the registered certificate
	X509Thumbprint string `gorm:"index"`

	RequirePKCE bool `gorm:"not null;default:false"`
	IsActive    bool `gorm:"not null;default:true"`

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateClientSecret generates a fresh secret, stores its bcrypt hash on
// the model, and returns the plaintext for one-time display.
func (c *Client) GenerateClientSecret(ctx context.Context) (string, error) {
	rBytes, err := util.RandomBytes(32)
	if err != nil {
		return "", err
	}
	// Add a prefix to the base32, this is in order to make it easier
	// for code scanners to grab sensitive tokens.
	clientSecret := "pgt_" + base32Lower.EncodeToString(rBytes)

	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	c.ClientSecret = string(hashedSecret)
	return clientSecret, nil
}

// ValidateClientSecret validates the given secret against the stored hash.
func (c *Client) ValidateClientSecret(secret []byte) bool {
	if len(c.ClientSecret) == 0 || len(secret) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.ClientSecret), secret) == nil
}

// ValidateCertificate checks the presented TLS certificate's SHA-256
// thumbprint against the registered thumbprint.
func (c *Client) ValidateCertificate(cert *x509.Certificate) bool {
	if c.X509Thumbprint == "" || cert == nil {
		return false
	}
	sum := sha256.Sum256(cert.Raw)
	thumbprint := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(thumbprint), []byte(c.X509Thumbprint)) == 1
}

// TokenLifetime returns the client's configured access-token lifetime, or
// fallback when the client carries no override.
func (c *Client) TokenLifetime(fallback time.Duration) time.Duration {
	if c.TokenLifetimeSeconds <= 0 {
		return fallback
	}
	return time.Duration(c.TokenLifetimeSeconds) * time.Second
}

// HasGrantType reports whether the client may use the given grant type.
func (c *Client) HasGrantType(grantType string) bool {
	for _, g := range strings.Fields(c.GrantTypes) {
		if g == grantType {
			return true
		}
	}
	return false
}

// HasResponseType reports whether the client supports the given response type.
func (c *Client) HasResponseType(responseType string) bool {
	for _, r := range strings.Fields(c.ResponseTypes) {
		if r == responseType {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI.
func (c *Client) HasRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsScopes reports whether every requested scope is registered on the client.
func (c *Client) AllowsScopes(requested string) bool {
	allowed := make(map[string]bool)
	for _, sc := range strings.Fields(c.Scopes) {
		allowed[sc] = true
	}
	for _, sc := range strings.Fields(requested) {
		if !allowed[sc] {
			return false
		}
	}
	return true
}

// TableName overrides the table name used by Client to `clients`
func (Client) TableName() string {
	return "clients"
}

// StringArray is a custom type for []string that can be stored as JSON in database
type StringArray []string

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("failed to unmarshal JSON value")
		}
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}
