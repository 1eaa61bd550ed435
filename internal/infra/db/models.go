package db

import "time"

type ProposalModel struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ActionJSON   []byte `gorm:"type:jsonb;not null"`
	Proposer     string `gorm:"index;not null"`
	Executed     bool   `gorm:"index;not null"`
	ExecutedAt   *time.Time
	ExecutionErr string
	CreatedAt    time.Time `gorm:"not null"`
}

type ConfirmationModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ProposalID  uint64    `gorm:"uniqueIndex:idx_confirmation_once;not null"`
	Approver    string    `gorm:"uniqueIndex:idx_confirmation_once;not null"`
	ConfirmedAt time.Time `gorm:"not null"`
}

type ApproverModel struct {
	Identity string    `gorm:"primaryKey"`
	Active   bool      `gorm:"not null"`
	AddedAt  time.Time `gorm:"not null"`
}

// GovernanceParamsModel is a single-row table (ID always 1) holding the
// current threshold.
type GovernanceParamsModel struct {
	ID        int64     `gorm:"primaryKey"`
	Threshold uint      `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type UsedPaymentModel struct {
	Reference string    `gorm:"primaryKey"`
	UsedAt    time.Time `gorm:"not null"`
}

type ExecutionModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	ProposalID uint64    `gorm:"index;not null"`
	Outcome    string    `gorm:"not null"`
	Detail     string
	CreatedAt  time.Time `gorm:"not null"`
}
