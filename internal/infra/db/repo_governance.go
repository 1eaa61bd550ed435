package db

import (
	"context"
	"errors"
	"time"

	"tollgate/internal/domain"

	"gorm.io/gorm"
)

const governanceParamsRow = 1

type GovernanceRepository struct {
	db *gorm.DB
}

func NewGovernanceRepository(db *gorm.DB) *GovernanceRepository {
	return &GovernanceRepository{db: db}
}

// Load returns the persisted authority set. The second return reports
// whether a config exists yet; first boot bootstraps from env.
func (r *GovernanceRepository) Load(ctx context.Context) (domain.GovernanceConfig, bool, error) {
	if r.db == nil {
		return domain.GovernanceConfig{}, false, errDBUnavailable
	}
	var params GovernanceParamsModel
	err := r.db.WithContext(ctx).First(&params, "id = ?", governanceParamsRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.GovernanceConfig{}, false, nil
	}
	if err != nil {
		return domain.GovernanceConfig{}, false, err
	}
	var approvers []ApproverModel
	if err := r.db.WithContext(ctx).Find(&approvers).Error; err != nil {
		return domain.GovernanceConfig{}, false, err
	}
	cfg := domain.GovernanceConfig{
		Threshold: params.Threshold,
		Approvers: make(map[domain.Identity]domain.Approver, len(approvers)),
	}
	for _, a := range approvers {
		if !a.Active {
			continue
		}
		cfg.Approvers[domain.Identity(a.Identity)] = domain.Approver{
			Identity: domain.Identity(a.Identity),
			Active:   a.Active,
			AddedAt:  a.AddedAt,
		}
	}
	return cfg, true, nil
}

// Save replaces the authority set atomically.
func (r *GovernanceRepository) Save(ctx context.Context, cfg domain.GovernanceConfig) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ApproverModel{}).Error; err != nil {
			return err
		}
		for _, approver := range cfg.Approvers {
			addedAt := approver.AddedAt
			if addedAt.IsZero() {
				addedAt = now
			}
			model := ApproverModel{
				Identity: string(approver.Identity),
				Active:   true,
				AddedAt:  addedAt.UTC(),
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		params := GovernanceParamsModel{
			ID:        governanceParamsRow,
			Threshold: cfg.Threshold,
			UpdatedAt: now,
		}
		return tx.Save(&params).Error
	})
}
