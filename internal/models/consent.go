package models

import "time"

// Consent records a resource owner's approval of a client's access to
// specific scopes or claims. There is at most one active record per
// (UserID, ClientID) pair; the authorization response generator consults it
// before issuing a code, and its presence skips re-prompting.
type Consent struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"uniqueIndex;size:36;not null"`

	UserID   string `gorm:"not null;uniqueIndex:idx_user_client"` // FK → User.ID
	ClientID string `gorm:"not null;uniqueIndex:idx_user_client"`

	Scopes        string      `gorm:"not null"`  // space-separated granted scopes
	GrantedClaims StringArray `gorm:"type:json"` // claim-level grants, when no scope applies

	GrantedAt time.Time
	RevokedAt *time.Time
	IsActive  bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Consent) TableName() string {
	return "consents"
}
