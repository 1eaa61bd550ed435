package db

import (
	"context"
	"errors"
	"time"

	"tollgate/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsedPaymentRepository is the postgres-backed used-payment index. The
// primary key on reference makes insert the compare-and-insert: with
// ON CONFLICT DO NOTHING, exactly one concurrent caller gets a row in.
type UsedPaymentRepository struct {
	db *gorm.DB
}

func NewUsedPaymentRepository(db *gorm.DB) *UsedPaymentRepository {
	return &UsedPaymentRepository{db: db}
}

func (r *UsedPaymentRepository) MarkUsed(ctx context.Context, ref domain.PaymentReference) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	if ref == "" {
		return false, errors.New("payment reference is required")
	}
	model := UsedPaymentModel{
		Reference: string(ref),
		UsedAt:    time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *UsedPaymentRepository) IsUsed(ctx context.Context, ref domain.PaymentReference) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&UsedPaymentModel{}).
		Where("reference = ?", string(ref)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
