package models

import "time"

// Ticket is a UMA 2.0 permission ticket: a pending access request against
// one or more resource sets. Created by the permission API when a
// protected-resource access attempt needs authorization; consumed exactly
// once when a token is issued against it.
type Ticket struct {
	ID string `gorm:"primaryKey;size:36"`

	Lines []TicketLine `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE"`

	// Set once the resource owner approves a pending request out of band.
	IsAuthorizedByRO bool `gorm:"not null;default:false"`

	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *Ticket) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (Ticket) TableName() string {
	return "tickets"
}

// TicketLine is one requested (resource set, scopes) pair within a ticket.
// Line order is preserved; every line must authorize for the ticket to
// authorize.
type TicketLine struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TicketID      string `gorm:"not null;index;size:36"`
	ResourceSetID string `gorm:"not null;index"`
	Scopes        string `gorm:"not null"` // space-separated requested scopes
	Position      int    `gorm:"not null;default:0"`
}

func (TicketLine) TableName() string {
	return "ticket_lines"
}
