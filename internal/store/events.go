package store

import (
	"time"

	"github.com/permgate/permgate/internal/models"
)

// SaveEvents writes a batch of domain events in one insert.
func (s *Store) SaveEvents(events []models.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.Create(&events).Error
}

// GetEventsByActor lists recent events for an actor, newest first.
func (s *Store) GetEventsByActor(actorID string, limit int) ([]models.DomainEvent, error) {
	var events []models.DomainEvent
	err := s.db.Where("actor_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// DeleteEventsBefore prunes events older than the cutoff.
func (s *Store) DeleteEventsBefore(cutoff time.Time) error {
	return s.db.Where("created_at < ?", cutoff).
		Delete(&models.DomainEvent{}).Error
}
