package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Token category and status constants
const (
	TokenCategoryAccess  = "access"
	TokenCategoryRefresh = "refresh"
	TokenCategoryRPT     = "rpt"

	TokenStatusActive   = "active"
	TokenStatusDisabled = "disabled"
	TokenStatusRevoked  = "revoked"
)

// GrantedToken is an issued access, refresh, or requesting-party token.
// Never mutated after creation; a refresh mints a new row referencing the
// parent via ParentTokenID.
type GrantedToken struct {
	ID            string `gorm:"primaryKey"`
	Token         string `gorm:"uniqueIndex;not null"` // compact JWT value
	TokenType     string `gorm:"not null;default:'Bearer'"`
	TokenCategory string `gorm:"not null;default:'access';index"` // 'access', 'refresh' or 'rpt'
	Status        string `gorm:"not null;default:'active';index"` // 'active', 'disabled', 'revoked'
	RefreshToken  string `gorm:"index"`                           // paired refresh token value, if any
	UserID        string `gorm:"index"`                           // empty for client_credentials tokens
	ClientID      string `gorm:"not null;index"`
	Scopes        string `gorm:"not null"` // space-separated scopes
	GrantType     string `gorm:"not null;index"`

	// OIDC artifacts minted alongside the access token
	IDToken        string  `gorm:"type:text"`
	IDTokenPayload JSONMap `gorm:"type:json"` // claim snapshot used for reuse matching

	ExpiresAt     time.Time
	CreatedAt     time.Time
	LastUsedAt    *time.Time `gorm:"index"`
	ParentTokenID string     `gorm:"index"` // refresh chain linkage
	ConsentID     *uint      `gorm:"index"` // FK → Consent.ID (nil for machine tokens)
}

func (t *GrantedToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsActive returns true if token status is 'active'
func (t *GrantedToken) IsActive() bool {
	return t.Status == TokenStatusActive
}

// IsRevoked returns true if token status is 'revoked'
func (t *GrantedToken) IsRevoked() bool {
	return t.Status == TokenStatusRevoked
}

// IsAccessToken returns true if token category is 'access'
func (t *GrantedToken) IsAccessToken() bool {
	return t.TokenCategory == TokenCategoryAccess
}

// IsRefreshToken returns true if token category is 'refresh'
func (t *GrantedToken) IsRefreshToken() bool {
	return t.TokenCategory == TokenCategoryRefresh
}

func (GrantedToken) TableName() string {
	return "granted_tokens"
}

// JSONMap stores a map[string]any as a JSON column.
type JSONMap map[string]any

// Scan implements sql.Scanner interface
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
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
	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Equal reports whether two payload snapshots carry the same claims.
// Used by the token reuse lookup to decide whether an existing valid token
// can be returned instead of minting a new one.
func (m JSONMap) Equal(other JSONMap) bool {
	if len(m) != len(other) {
		return false
	}
	a, err := json.Marshal(m)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
