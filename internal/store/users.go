package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// GetUser looks up a user by id.
func (s *Store) GetUser(userID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername looks up a user by username.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser persists a new user record.
func (s *Store) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}
