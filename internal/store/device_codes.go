package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// CreateDeviceCode persists a device authorization record.
func (s *Store) CreateDeviceCode(dc *models.DeviceCode) error {
	return s.db.Create(dc).Error
}

// GetDeviceCodesByID returns the candidate records sharing a device-code
// suffix. The caller verifies the PBKDF2 hash against each candidate.
func (s *Store) GetDeviceCodesByID(deviceCodeID string) ([]models.DeviceCode, error) {
	var codes []models.DeviceCode
	err := s.db.Where("device_code_id = ?", deviceCodeID).Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// GetDeviceCodeByUserCode looks up a device authorization by its user code.
func (s *Store) GetDeviceCodeByUserCode(userCode string) (*models.DeviceCode, error) {
	var dc models.DeviceCode
	if err := s.db.Where("user_code = ?", userCode).First(&dc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &dc, nil
}

// AuthorizeDeviceCode marks a device authorization approved by a user.
func (s *Store) AuthorizeDeviceCode(userCode, userID string) error {
	return s.db.Model(&models.DeviceCode{}).
		Where("user_code = ? AND authorized = ?", userCode, false).
		Updates(map[string]any{
			"user_id":       userID,
			"authorized":    true,
			"authorized_at": time.Now(),
		}).Error
}

// DeleteDeviceCode removes a consumed device authorization.
func (s *Store) DeleteDeviceCode(id int64) error {
	return s.db.Where("id = ?", id).Delete(&models.DeviceCode{}).Error
}

// DeleteExpiredDeviceCodes removes device authorizations past their expiry.
func (s *Store) DeleteExpiredDeviceCodes() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.DeviceCode{}).Error
}
