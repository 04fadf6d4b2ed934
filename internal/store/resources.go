package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/permgate/permgate/internal/models"
)

// CreateResourceSet persists a resource set with its policies and rules.
func (s *Store) CreateResourceSet(rs *models.ResourceSet) error {
	return s.db.Create(rs).Error
}

// GetResourceSet fetches a single resource set with its policy tree.
func (s *Store) GetResourceSet(id string) (*models.ResourceSet, error) {
	var rs models.ResourceSet
	err := s.preloadPolicies(s.db).Where("id = ?", id).First(&rs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rs, nil
}

// GetResourceSets fetches a batch of resource sets keyed by id. Missing ids
// are absent from the map so the caller can fail closed per line.
func (s *Store) GetResourceSets(ids []string) (map[string]*models.ResourceSet, error) {
	if len(ids) == 0 {
		return map[string]*models.ResourceSet{}, nil
	}
	var sets []models.ResourceSet
	if err := s.preloadPolicies(s.db).Where("id IN ?", ids).Find(&sets).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.ResourceSet, len(sets))
	for i := range sets {
		byID[sets[i].ID] = &sets[i]
	}
	return byID, nil
}

// GetResourceSetsByOwner lists the resource sets registered by an owner.
func (s *Store) GetResourceSetsByOwner(ownerID string) ([]models.ResourceSet, error) {
	var sets []models.ResourceSet
	err := s.preloadPolicies(s.db).Where("owner_id = ?", ownerID).Find(&sets).Error
	return sets, err
}

// UpdateResourceSet saves mutable resource-set fields.
func (s *Store) UpdateResourceSet(rs *models.ResourceSet) error {
	return s.db.Save(rs).Error
}

// DeleteResourceSet removes a resource set and, via FK cascade, its policies.
func (s *Store) DeleteResourceSet(id string) error {
	return s.db.Where("id = ?", id).Delete(&models.ResourceSet{}).Error
}

func (s *Store) preloadPolicies(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Policies", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Policies.Rules", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}
