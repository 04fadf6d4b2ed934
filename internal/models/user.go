package models

import (
	"time"
)

// User is a resource owner. Managed by the external SCIM-style API;
// lookup-only from the token core's perspective.
type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string // externally-authenticated users have empty password
	FullName     string
	AvatarURL    string

	// External authentication support
	ExternalID string `gorm:"index"`
	AuthSource string `gorm:"default:'local'"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExternal returns true if the user authenticates via an external provider
func (u *User) IsExternal() bool {
	return u.AuthSource != "local" && u.AuthSource != ""
}

// Claims returns the standard OIDC claims derivable from the user record,
// filtered to the given claim names. Called at issuance and refresh time so
// revoked or changed attributes propagate into new tokens.
func (u *User) Claims(names []string) map[string]any {
	all := map[string]any{
		"sub":                u.ID,
		"name":               u.FullName,
		"preferred_username": u.Username,
		"email":              u.Email,
		"picture":            u.AvatarURL,
		"updated_at":         u.UpdatedAt.Unix(),
	}
	if len(names) == 0 {
		return map[string]any{"sub": u.ID}
	}
	out := make(map[string]any, len(names)+1)
	out["sub"] = u.ID
	for _, n := range names {
		if v, ok := all[n]; ok {
			out[n] = v
		}
	}
	return out
}
