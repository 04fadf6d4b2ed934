package models

import "time"

// Scope type constants
const (
	ScopeTypeProtectedAPI  = "protected_api"
	ScopeTypeResourceOwner = "resource_owner"
)

// Scope is immutable reference data during request processing. Each scope
// names the claims it unlocks in ID-token and user-info payloads.
type Scope struct {
	Name        string      `gorm:"primaryKey"`
	Description string      `gorm:"type:text"`
	Claims      StringArray `gorm:"type:json"` // claim names unlocked by this scope
	IsExposed   bool        `gorm:"not null;default:true"`  // listed in discovery
	IsDisplayed bool        `gorm:"not null;default:true"`  // shown on consent
	Type        string      `gorm:"not null;default:'protected_api'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Scope) TableName() string {
	return "scopes"
}
