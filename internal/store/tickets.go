package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// CreateTicket persists a permission ticket with its lines.
func (s *Store) CreateTicket(ticket *models.Ticket) error {
	return s.db.Create(ticket).Error
}

// GetTicket fetches a ticket with its lines in their original order.
func (s *Store) GetTicket(ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", ticketID).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// RemoveTicket consumes a ticket exactly once. A concurrent exchange of the
// same ticket sees zero deleted rows and gets ErrTicketAlreadyConsumed.
func (s *Store) RemoveTicket(ticketID string) error {
	result := s.db.Where("id = ?", ticketID).Delete(&models.Ticket{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTicketAlreadyConsumed
	}
	return nil
}

// DeleteExpiredTickets removes tickets past their expiry.
func (s *Store) DeleteExpiredTickets() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.Ticket{}).Error
}
