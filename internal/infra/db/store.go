package db

import (
	"fmt"

	"tollgate/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

func (s *Store) AutoMigrate() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.AutoMigrate(
		&ProposalModel{},
		&ConfirmationModel{},
		&ApproverModel{},
		&GovernanceParamsModel{},
		&UsedPaymentModel{},
		&ExecutionModel{},
	)
}
