package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// GetConsent returns the active consent a user has granted to a client.
func (s *Store) GetConsent(userID, clientID string) (*models.Consent, error) {
	var consent models.Consent
	err := s.db.
		Where("user_id = ? AND client_id = ? AND is_active = ?", userID, clientID, true).
		First(&consent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &consent, nil
}

// UpsertConsent records a consent grant, replacing any previous grant for the
// same (user, client) pair.
func (s *Store) UpsertConsent(consent *models.Consent) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Consent
		err := tx.Where("user_id = ? AND client_id = ?", consent.UserID, consent.ClientID).
			First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(consent).Error
			}
			return err
		}
		existing.Scopes = consent.Scopes
		existing.GrantedClaims = consent.GrantedClaims
		existing.IsActive = true
		existing.GrantedAt = time.Now()
		existing.RevokedAt = nil
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*consent = existing
		return nil
	})
}

// RevokeConsent deactivates a user's consent for a client.
func (s *Store) RevokeConsent(userID, clientID string) error {
	now := time.Now()
	return s.db.Model(&models.Consent{}).
		Where("user_id = ? AND client_id = ? AND is_active = ?", userID, clientID, true).
		Updates(map[string]any{"is_active": false, "revoked_at": &now}).Error
}
