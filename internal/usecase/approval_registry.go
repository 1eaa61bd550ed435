package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tollgate/internal/domain"

	"go.uber.org/zap"
)

// ApprovalRegistry owns all proposal and authority-set state. A single
// mutex covers submit, confirm, revoke, and the threshold-triggered
// execution: governance traffic is low-frequency and the coarse lock
// guarantees that "count reaches threshold" and "execute once" are one
// atomic step even under concurrent confirmations.
type ApprovalRegistry struct {
	mu sync.Mutex

	cfg       domain.GovernanceConfig
	proposals ProposalRepository
	configs   GovernanceConfigRepository
	executor  *ProposalExecutor
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewApprovalRegistry(
	ctx context.Context,
	proposals ProposalRepository,
	configs GovernanceConfigRepository,
	executor *ProposalExecutor,
	bootstrap domain.GovernanceConfig,
	logger *zap.SugaredLogger,
) (*ApprovalRegistry, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg, found, err := configs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load governance config: %w", err)
	}
	if !found {
		if err := bootstrap.Validate(); err != nil {
			return nil, err
		}
		if err := configs.Save(ctx, bootstrap); err != nil {
			return nil, fmt.Errorf("bootstrap governance config: %w", err)
		}
		cfg = bootstrap
		logger.Infow("bootstrapped governance config",
			"approvers", len(cfg.Approvers), "threshold", cfg.Threshold)
	}
	r := &ApprovalRegistry{
		cfg:       cfg,
		proposals: proposals,
		configs:   configs,
		executor:  executor,
		logger:    logger,
		now:       time.Now,
	}
	if executor != nil {
		executor.bindRegistry(r)
	}
	return r, nil
}

// Submit creates a proposal auto-confirmed by its proposer. With a
// threshold of one the proposal executes before Submit returns.
func (r *ApprovalRegistry) Submit(ctx context.Context, proposer domain.Identity, action domain.Action) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.IsApprover(proposer) {
		return 0, domain.ErrUnauthorized
	}
	if err := validateAction(action); err != nil {
		return 0, err
	}
	now := r.now().UTC()
	proposal := domain.Proposal{
		Action:        action,
		Proposer:      proposer,
		CreatedAt:     now,
		Confirmations: map[domain.Identity]time.Time{proposer: now},
	}
	id, err := r.proposals.Create(ctx, proposal)
	if err != nil {
		return 0, fmt.Errorf("create proposal: %w", err)
	}
	r.logger.Infow("proposal submitted",
		"proposal_id", id, "kind", action.Kind, "proposer", proposer)

	if uint(1) >= r.cfg.Threshold {
		if err := r.executeLocked(ctx, id); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Confirm adds one approver's confirmation. Reaching the threshold
// executes the proposal as the terminal step of this same call.
func (r *ApprovalRegistry) Confirm(ctx context.Context, id uint64, approver domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.IsApprover(approver) {
		return domain.ErrUnauthorized
	}
	proposal, err := r.proposals.Get(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Executed {
		return domain.ErrAlreadyExecuted
	}
	if proposal.Confirmed(approver) {
		return domain.ErrDuplicateConfirmation
	}
	if err := r.proposals.AddConfirmation(ctx, id, approver, r.now().UTC()); err != nil {
		return fmt.Errorf("add confirmation: %w", err)
	}
	r.logger.Infow("proposal confirmed",
		"proposal_id", id, "approver", approver,
		"confirmations", proposal.ConfirmationCount()+1, "threshold", r.cfg.Threshold)

	if proposal.ConfirmationCount()+1 >= r.cfg.Threshold {
		return r.executeLocked(ctx, id)
	}
	return nil
}

// Revoke removes one approver's confirmation from a pending proposal.
func (r *ApprovalRegistry) Revoke(ctx context.Context, id uint64, approver domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.IsApprover(approver) {
		return domain.ErrUnauthorized
	}
	proposal, err := r.proposals.Get(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Executed {
		return domain.ErrAlreadyExecuted
	}
	if !proposal.Confirmed(approver) {
		return domain.ErrNotConfirmed
	}
	if err := r.proposals.RemoveConfirmation(ctx, id, approver); err != nil {
		return fmt.Errorf("remove confirmation: %w", err)
	}
	r.logger.Infow("confirmation revoked", "proposal_id", id, "approver", approver)
	return nil
}

func (r *ApprovalRegistry) Proposal(ctx context.Context, id uint64) (domain.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proposals.Get(ctx, id)
}

func (r *ApprovalRegistry) Pending(ctx context.Context) ([]domain.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proposals.ListPending(ctx)
}

// Config returns a snapshot of the current authority set.
func (r *ApprovalRegistry) Config() domain.GovernanceConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := domain.GovernanceConfig{
		Threshold: r.cfg.Threshold,
		Approvers: make(map[domain.Identity]domain.Approver, len(r.cfg.Approvers)),
	}
	for id, approver := range r.cfg.Approvers {
		out.Approvers[id] = approver
	}
	return out
}

// executeLocked runs the executor for a proposal that just reached
// threshold. The executed flag latches before the action runs, so a
// failing action never reopens the proposal; the failure is recorded
// against it and surfaced as ErrActionExecutionFailed.
func (r *ApprovalRegistry) executeLocked(ctx context.Context, id uint64) error {
	proposal, err := r.proposals.Get(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Executed {
		return domain.ErrAlreadyExecuted
	}

	execErr := r.executor.execute(ctx, proposal)
	execErrStr := ""
	outcome := "ok"
	if execErr != nil {
		execErrStr = execErr.Error()
		outcome = "failed"
	}
	if err := r.proposals.MarkExecuted(ctx, id, r.now().UTC(), execErrStr); err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	if err := r.proposals.RecordExecution(ctx, id, outcome, execErrStr); err != nil {
		r.logger.Warnw("record execution", "proposal_id", id, "error", err)
	}
	if execErr != nil {
		r.logger.Errorw("proposal execution failed",
			"proposal_id", id, "kind", proposal.Action.Kind, "error", execErr)
		return fmt.Errorf("%w: %v", domain.ErrActionExecutionFailed, execErr)
	}
	r.logger.Infow("proposal executed", "proposal_id", id, "kind", proposal.Action.Kind)
	return nil
}

// applyConfig installs a new authority set. Called only from executor
// dispatch while the registry mutex is held. Confirmations by removed
// approvers are discounted from every pending proposal so stale
// approvals never reach threshold.
func (r *ApprovalRegistry) applyConfig(ctx context.Context, next domain.GovernanceConfig) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if len(next.Approvers) == 0 {
		return domain.ErrInvalidThreshold
	}
	var removed []domain.Identity
	for id := range r.cfg.Approvers {
		if _, ok := next.Approvers[id]; !ok {
			removed = append(removed, id)
		}
	}
	if err := r.configs.Save(ctx, next); err != nil {
		return fmt.Errorf("save governance config: %w", err)
	}
	r.cfg = next
	if len(removed) > 0 {
		if err := r.proposals.RemoveConfirmationsBy(ctx, removed); err != nil {
			return fmt.Errorf("discount removed approvers: %w", err)
		}
		r.logger.Infow("discounted confirmations of removed approvers", "removed", len(removed))
	}
	return nil
}

func (r *ApprovalRegistry) currentConfig() domain.GovernanceConfig {
	return r.cfg
}

func validateAction(action domain.Action) error {
	switch action.Kind {
	case domain.ActionTransferFunds:
		if action.Recipient == "" || action.Amount == 0 {
			return fmt.Errorf("transfer action requires recipient and amount")
		}
	case domain.ActionChangeApprovers:
		if len(action.Approvers) == 0 {
			return domain.ErrInvalidThreshold
		}
		if action.Threshold < 1 || action.Threshold > uint(len(action.Approvers)) {
			return domain.ErrInvalidThreshold
		}
	case domain.ActionChangeThreshold:
		if action.Threshold < 1 {
			return domain.ErrInvalidThreshold
		}
	case domain.ActionGenericCall:
		if action.Target == "" {
			return fmt.Errorf("generic call requires a target")
		}
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
	return nil
}
