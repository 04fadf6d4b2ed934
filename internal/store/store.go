package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/permgate/permgate/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Scope{},
		&models.GrantedToken{},
		&models.AuthorizationCode{},
		&models.DeviceCode{},
		&models.Consent{},
		&models.Ticket{},
		&models.TicketLine{},
		&models.ResourceSet{},
		&models.Policy{},
		&models.PolicyRule{},
		&models.DomainEvent{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Health checks database connectivity.
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB exposes the underlying gorm handle for transactional flows.
func (s *Store) DB() *gorm.DB {
	return s.db
}
