package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// EventType represents the type of domain event
type EventType string

const (
	// Token events
	EventAccessTokenGranted  EventType = "ACCESS_TOKEN_GRANTED"
	EventRefreshTokenGranted EventType = "REFRESH_TOKEN_GRANTED"
	EventTokenRefreshed      EventType = "TOKEN_REFRESHED"
	EventTokenRevoked        EventType = "TOKEN_REVOKED"
	EventIDTokenGranted      EventType = "ID_TOKEN_GRANTED"
	EventRPTGranted          EventType = "RPT_GRANTED"

	// Authorization endpoint events
	EventAuthorizationCodeGenerated EventType = "AUTHORIZATION_CODE_GENERATED"
	EventAuthorizationCodeExchanged EventType = "AUTHORIZATION_CODE_EXCHANGED"
	EventConsentGranted             EventType = "CONSENT_GRANTED"
	EventConsentRevoked             EventType = "CONSENT_REVOKED"

	// Device authorization events
	EventDeviceCodeGenerated  EventType = "DEVICE_CODE_GENERATED"
	EventDeviceCodeAuthorized EventType = "DEVICE_CODE_AUTHORIZED"

	// UMA events
	EventTicketConsumed               EventType = "TICKET_CONSUMED"
	EventAuthorizationPolicyDenied    EventType = "AUTHORIZATION_POLICY_NOT_AUTHORIZED"
	EventAuthorizationPolicyNeedInfo  EventType = "AUTHORIZATION_POLICY_NEED_INFO"
	EventAuthorizationPolicySubmitted EventType = "AUTHORIZATION_POLICY_REQUEST_SUBMITTED"
)

// EventSeverity represents the severity level of a domain event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// EventDetails stores additional event-specific information as JSON
type EventDetails map[string]any

// Scan implements sql.Scanner interface
func (d *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*d = nil
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
	return json.Unmarshal(bytes, d)
}

// Value implements driver.Valuer interface
func (d EventDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// DomainEvent is the persisted form of a published event. Delivery is
// at-least-once; consumers must tolerate duplicates.
type DomainEvent struct {
	ID        string        `gorm:"primaryKey;size:36"`
	Type      EventType     `gorm:"not null;index"`
	Severity  EventSeverity `gorm:"not null;default:'INFO'"`
	ActorID   string        `gorm:"index"` // user or client on whose behalf
	ClientID  string        `gorm:"index"`
	TargetID  string        `gorm:"index"` // token id, ticket id, code uuid...
	Details   EventDetails  `gorm:"type:json"`
	CreatedAt time.Time     `gorm:"index"`
}

func (DomainEvent) TableName() string {
	return "domain_events"
}
