package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tollgate/internal/domain"

	"gorm.io/gorm"
)

type ProposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) Create(ctx context.Context, proposal domain.Proposal) (uint64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	actionJSON, err := json.Marshal(proposal.Action)
	if err != nil {
		return 0, fmt.Errorf("encode action: %w", err)
	}
	model := ProposalModel{
		ActionJSON: actionJSON,
		Proposer:   string(proposal.Proposer),
		CreatedAt:  proposal.CreatedAt.UTC(),
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		for approver, at := range proposal.Confirmations {
			confirmation := ConfirmationModel{
				ProposalID:  model.ID,
				Approver:    string(approver),
				ConfirmedAt: at.UTC(),
			}
			if err := tx.Create(&confirmation).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return model.ID, nil
}

func (r *ProposalRepository) Get(ctx context.Context, id uint64) (domain.Proposal, error) {
	if r.db == nil {
		return domain.Proposal{}, errDBUnavailable
	}
	var model ProposalModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Proposal{}, domain.ErrUnknownProposal
	}
	if err != nil {
		return domain.Proposal{}, err
	}
	var confirmations []ConfirmationModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", id).
		Find(&confirmations).Error; err != nil {
		return domain.Proposal{}, err
	}
	return proposalFromModel(model, confirmations)
}

func (r *ProposalRepository) ListPending(ctx context.Context) ([]domain.Proposal, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ProposalModel
	if err := r.db.WithContext(ctx).
		Where("executed = ?", false).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Proposal, 0, len(models))
	for _, model := range models {
		var confirmations []ConfirmationModel
		if err := r.db.WithContext(ctx).
			Where("proposal_id = ?", model.ID).
			Find(&confirmations).Error; err != nil {
			return nil, err
		}
		proposal, err := proposalFromModel(model, confirmations)
		if err != nil {
			return nil, err
		}
		out = append(out, proposal)
	}
	return out, nil
}

func (r *ProposalRepository) AddConfirmation(ctx context.Context, id uint64, approver domain.Identity, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	confirmation := ConfirmationModel{
		ProposalID:  id,
		Approver:    string(approver),
		ConfirmedAt: at.UTC(),
	}
	return r.db.WithContext(ctx).Create(&confirmation).Error
}

func (r *ProposalRepository) RemoveConfirmation(ctx context.Context, id uint64, approver domain.Identity) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Where("proposal_id = ? AND approver = ?", id, string(approver)).
		Delete(&ConfirmationModel{}).Error
}

func (r *ProposalRepository) MarkExecuted(ctx context.Context, id uint64, at time.Time, execErr string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	at = at.UTC()
	return r.db.WithContext(ctx).Model(&ProposalModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"executed":      true,
			"executed_at":   at,
			"execution_err": execErr,
		}).Error
}

// RemoveConfirmationsBy drops the given approvers' confirmations from
// every pending proposal. Called when an executed ChangeApprovers
// action removes members from the authority set.
func (r *ProposalRepository) RemoveConfirmationsBy(ctx context.Context, approvers []domain.Identity) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(approvers) == 0 {
		return nil
	}
	names := make([]string, 0, len(approvers))
	for _, a := range approvers {
		names = append(names, string(a))
	}
	return r.db.WithContext(ctx).
		Where("approver IN ? AND proposal_id IN (?)",
			names,
			r.db.Model(&ProposalModel{}).Select("id").Where("executed = ?", false),
		).
		Delete(&ConfirmationModel{}).Error
}

func (r *ProposalRepository) RecordExecution(ctx context.Context, proposalID uint64, outcome, detail string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	id, err := newUUID()
	if err != nil {
		return err
	}
	model := ExecutionModel{
		ID:         id,
		ProposalID: proposalID,
		Outcome:    outcome,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func proposalFromModel(model ProposalModel, confirmations []ConfirmationModel) (domain.Proposal, error) {
	var action domain.Action
	if err := json.Unmarshal(model.ActionJSON, &action); err != nil {
		return domain.Proposal{}, fmt.Errorf("decode action: %w", err)
	}
	proposal := domain.Proposal{
		ID:            model.ID,
		Action:        action,
		Proposer:      domain.Identity(model.Proposer),
		CreatedAt:     model.CreatedAt,
		Confirmations: make(map[domain.Identity]time.Time, len(confirmations)),
		Executed:      model.Executed,
		ExecutedAt:    model.ExecutedAt,
		ExecutionErr:  model.ExecutionErr,
	}
	for _, c := range confirmations {
		proposal.Confirmations[domain.Identity(c.Approver)] = c.ConfirmedAt
	}
	return proposal, nil
}
