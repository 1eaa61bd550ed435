package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tollgate/internal/domain"

	"go.uber.org/zap"
)

// ProposalExecutor performs the privileged action of a proposal that
// reached threshold. It is invoked exactly once per proposal, only by
// the registry's threshold transition, while the registry mutex is
// held. Authority-set changes dispatch back into the registry through
// applyConfig; everything external goes through the Treasury capability
// boundary, generic calls included.
type ProposalExecutor struct {
	treasury Treasury
	logger   *zap.SugaredLogger
	registry *ApprovalRegistry
}

func NewProposalExecutor(treasury Treasury, logger *zap.SugaredLogger) *ProposalExecutor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ProposalExecutor{treasury: treasury, logger: logger}
}

func (e *ProposalExecutor) bindRegistry(r *ApprovalRegistry) {
	e.registry = r
}

func (e *ProposalExecutor) execute(ctx context.Context, proposal domain.Proposal) error {
	action := proposal.Action
	e.logger.Infow("executing privileged action",
		"proposal_id", proposal.ID, "kind", action.Kind)

	switch action.Kind {
	case domain.ActionTransferFunds:
		if e.treasury == nil {
			return errors.New("no treasury configured")
		}
		return e.treasury.Transfer(ctx, action.Recipient, action.Amount)

	case domain.ActionGenericCall:
		if e.treasury == nil {
			return errors.New("no treasury configured")
		}
		return e.treasury.Call(ctx, action.Target, action.Payload)

	case domain.ActionChangeApprovers:
		next := domain.GovernanceConfig{
			Threshold: action.Threshold,
			Approvers: make(map[domain.Identity]domain.Approver, len(action.Approvers)),
		}
		now := time.Now().UTC()
		current := e.registry.currentConfig()
		for _, id := range action.Approvers {
			approver := domain.Approver{Identity: id, Active: true, AddedAt: now}
			if existing, ok := current.Approvers[id]; ok {
				approver.AddedAt = existing.AddedAt
			}
			next.Approvers[id] = approver
		}
		return e.registry.applyConfig(ctx, next)

	case domain.ActionChangeThreshold:
		current := e.registry.currentConfig()
		next := domain.GovernanceConfig{
			Threshold: action.Threshold,
			Approvers: current.Approvers,
		}
		return e.registry.applyConfig(ctx, next)

	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
