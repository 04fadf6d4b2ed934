package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ResourceSet is a UMA-protected resource registered by a resource owner.
// Its ordered policy list governs who may obtain an RPT for it.
type ResourceSet struct {
	ID      string      `gorm:"primaryKey;size:36"`
	OwnerID string      `gorm:"not null;index"` // FK → User.ID
	Name    string      `gorm:"not null"`
	Type    string
	Scopes  StringArray `gorm:"type:json"` // scopes the resource exposes
	IconURI string

	Policies []Policy `gorm:"foreignKey:ResourceSetID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ResourceSet) TableName() string {
	return "resource_sets"
}

// Policy groups ordered rules for one resource set. A requester is
// authorized by a policy if any of its rules fully authorizes (OR across
// rules).
type Policy struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ResourceSetID string `gorm:"not null;index;size:36"`
	Position      int    `gorm:"not null;default:0"`

	Rules []PolicyRule `gorm:"foreignKey:PolicyID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Policy) TableName() string {
	return "policies"
}

// PolicyRule is one evaluable condition set. All of its checks must pass for
// the rule to authorize: scope containment, client allow-list, required
// claims (verified against the issuing OpenID provider's keys), and the
// resource-owner-consent gate.
type PolicyRule struct {
	ID       uint `gorm:"primaryKey;autoIncrement"`
	PolicyID uint `gorm:"not null;index"`
	Position int  `gorm:"not null;default:0"`

	Scopes           StringArray `gorm:"type:json"` // scopes this rule may grant
	ClientIDsAllowed StringArray `gorm:"type:json"` // empty = any client
	Claims           ClaimList   `gorm:"type:json"` // required claims, empty = none

	IsResourceOwnerConsentNeeded bool `gorm:"not null;default:false"`

	// OpenID provider whose keys verify the claim token presented against
	// this rule.
	OpenIDProvider string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PolicyRule) TableName() string {
	return "policy_rules"
}

// Claim is a required (type, value) pair a claim token must carry.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimList stores []Claim as a JSON column.
type ClaimList []Claim

// Scan implements sql.Scanner interface
func (c *ClaimList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
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
	return json.Unmarshal(bytes, c)
}

// Value implements driver.Valuer interface
func (c ClaimList) Value() (driver.Value, error) {
	if len(c) == 0 {
		return json.Marshal([]Claim{})
	}
	return json.Marshal(c)
}
