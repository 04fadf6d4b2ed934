package store

import (
	"github.com/permgate/permgate/internal/models"
)

// GetScopes returns the scope records matching the given names. Unknown names
// are silently absent from the result.
func (s *Store) GetScopes(names []string) ([]models.Scope, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var scopes []models.Scope
	if err := s.db.Where("name IN ?", names).Find(&scopes).Error; err != nil {
		return nil, err
	}
	return scopes, nil
}

// GetExposedScopes lists the scopes advertised through discovery.
func (s *Store) GetExposedScopes() ([]models.Scope, error) {
	var scopes []models.Scope
	if err := s.db.Where("is_exposed = ?", true).Find(&scopes).Error; err != nil {
		return nil, err
	}
	return scopes, nil
}

// CreateScope persists a scope definition.
func (s *Store) CreateScope(scope *models.Scope) error {
	return s.db.Create(scope).Error
}
