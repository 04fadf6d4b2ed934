package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// AddToken persists a newly minted granted token.
func (s *Store) AddToken(token *models.GrantedToken) error {
	return s.db.Create(token).Error
}

// GetToken looks up a granted token by its access-token value.
func (s *Store) GetToken(value string) (*models.GrantedToken, error) {
	var token models.GrantedToken
	if err := s.db.Where("token = ?", value).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &token, nil
}

// GetTokenByID looks up a granted token by its primary id.
func (s *Store) GetTokenByID(tokenID string) (*models.GrantedToken, error) {
	var token models.GrantedToken
	if err := s.db.Where("id = ?", tokenID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &token, nil
}

// GetRefreshToken looks up the granted token that owns the given
// refresh-token value.
func (s *Store) GetRefreshToken(value string) (*models.GrantedToken, error) {
	var token models.GrantedToken
	if err := s.db.Where("refresh_token = ?", value).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &token, nil
}

// GetValidGrantedTokens returns the still-valid active tokens for a
// (scope, client) pair, newest first. The caller matches payload snapshots
// to decide reuse; payload comparison does not translate to SQL.
func (s *Store) GetValidGrantedTokens(scopes, clientID string) ([]models.GrantedToken, error) {
	var tokens []models.GrantedToken
	err := s.db.
		Where("scopes = ? AND client_id = ? AND status = ? AND expires_at > ?",
			scopes, clientID, models.TokenStatusActive, time.Now()).
		Order("created_at DESC").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// UpdateTokenStatus transitions a token to the given status.
func (s *Store) UpdateTokenStatus(tokenID, status string) error {
	return s.db.Model(&models.GrantedToken{}).
		Where("id = ?", tokenID).
		Update("status", status).Error
}

// RevokeToken marks a token revoked.
func (s *Store) RevokeToken(tokenID string) error {
	return s.UpdateTokenStatus(tokenID, models.TokenStatusRevoked)
}

// TouchToken updates a token's last_used_at timestamp.
func (s *Store) TouchToken(tokenID string) error {
	now := time.Now()
	return s.db.Model(&models.GrantedToken{}).
		Where("id = ?", tokenID).
		Update("last_used_at", &now).Error
}

// DeleteExpiredTokens removes tokens past their expiry.
func (s *Store) DeleteExpiredTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.GrantedToken{}).Error
}

// CountActiveTokensByCategory returns the number of active tokens in a category.
func (s *Store) CountActiveTokensByCategory(category string) (int64, error) {
	var count int64
	err := s.db.Model(&models.GrantedToken{}).
		Where("token_category = ? AND status = ? AND expires_at > ?",
			category, models.TokenStatusActive, time.Now()).
		Count(&count).Error
	return count, err
}
