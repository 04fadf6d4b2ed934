package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// GetClient looks up a client by its public client_id.
func (s *Store) GetClient(clientID string) (*models.Client, error) {
	var client models.Client
	if err := s.db.Where("client_id = ?", clientID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &client, nil
}

// GetClientByThumbprint looks up a client by its registered certificate
// thumbprint. Used by the mTLS authentication method.
func (s *Store) GetClientByThumbprint(thumbprint string) (*models.Client, error) {
	if thumbprint == "" {
		return nil, ErrRecordNotFound
	}
	var client models.Client
	if err := s.db.Where("x509_thumbprint = ?", thumbprint).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &client, nil
}

// GetClientsByIDs batch-fetches clients using WHERE IN, returned keyed by client_id.
func (s *Store) GetClientsByIDs(clientIDs []string) (map[string]*models.Client, error) {
	result := make(map[string]*models.Client)
	if len(clientIDs) == 0 {
		return result, nil
	}

	var clients []models.Client
	if err := s.db.Where("client_id IN ?", clientIDs).Find(&clients).Error; err != nil {
		return nil, err
	}

	for i := range clients {
		result[clients[i].ClientID] = &clients[i]
	}
	return result, nil
}

func (s *Store) CreateClient(client *models.Client) error {
	return s.db.Create(client).Error
}

func (s *Store) UpdateClient(client *models.Client) error {
	return s.db.Save(client).Error
}
