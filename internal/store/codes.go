package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// CreateAuthorizationCode persists a freshly generated authorization code.
func (s *Store) CreateAuthorizationCode(code *models.AuthorizationCode) error {
	return s.db.Create(code).Error
}

// GetAuthorizationCodeByHash looks up a code by its SHA-256 hash.
func (s *Store) GetAuthorizationCodeByHash(codeHash string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	if err := s.db.Where("code_hash = ?", codeHash).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &code, nil
}

// MarkAuthorizationCodeUsed consumes a code exactly once. The conditional
// update keeps the check-and-set atomic under concurrent exchanges: a second
// caller sees zero affected rows and gets ErrAuthCodeAlreadyUsed.
func (s *Store) MarkAuthorizationCodeUsed(codeHash string) error {
	now := time.Now()
	result := s.db.Model(&models.AuthorizationCode{}).
		Where("code_hash = ? AND used_at IS NULL", codeHash).
		Update("used_at", &now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuthCodeAlreadyUsed
	}
	return nil
}

// DeleteExpiredAuthorizationCodes removes codes past their expiry.
func (s *Store) DeleteExpiredAuthorizationCodes() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.AuthorizationCode{}).Error
}
