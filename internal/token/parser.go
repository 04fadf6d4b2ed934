package token

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"

	"github.com/permgate/permgate/internal/config"
)

// Parser unwraps inbound compact tokens before signature validation. A token
// arrives either as a bare JWS or as a JWE envelope around one; the envelope
// is decrypted with the server encryption key and the inner JWS handed back
// to the caller for verification. Malformed input yields a sentinel error,
// never a panic.
type Parser struct {
	decryptionKey []byte
}

// NewParser creates a parser bound to the server configuration. The
// configured passphrase is hashed to the 32-byte KEK that A256KW requires;
// an empty TOKEN_ENCRYPTION_KEY leaves JWE unwrapping disabled.
func NewParser(cfg *config.Config) *Parser {
	p := &Parser{}
	if cfg.EncryptionKey != "" {
		kek := sha256.Sum256([]byte(cfg.EncryptionKey))
		p.decryptionKey = kek[:]
	}
	return p
}

// Decode returns the compact JWS carried by tokenString. A plain JWS passes
// through unchanged; a JWE (five segments with an "enc" protected header) is
// decrypted first.
func (p *Parser) Decode(tokenString string) (string, error) {
	if !isEncrypted(tokenString) {
		return tokenString, nil
	}
	if p.decryptionKey == nil {
		return "", ErrNoDecryptionKey
	}
	inner, err := jwe.Decrypt(
		[]byte(tokenString),
		jwe.WithKey(jwa.A256KW, p.decryptionKey),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(inner), nil
}

// isEncrypted reports whether the compact serialization is a JWE: five
// segments and an "enc" entry in the protected header.
func isEncrypted(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 5 {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var header struct {
		Enc string `json:"enc"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return false
	}
	return header.Enc != ""
}
