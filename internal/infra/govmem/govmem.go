package govmem

import (
	"context"
	"sync"
	"time"

	"tollgate/internal/domain"
)

// ProposalStore is the in-memory proposal repository for dev mode and
// tests. Serialization is the registry's job; the store only guards its
// own maps.
type ProposalStore struct {
	mu        sync.Mutex
	nextID    uint64
	proposals map[uint64]domain.Proposal
}

func NewProposalStore() *ProposalStore {
	return &ProposalStore{
		nextID:    1,
		proposals: make(map[uint64]domain.Proposal),
	}
}

func (s *ProposalStore) Create(_ context.Context, proposal domain.Proposal) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal.ID = s.nextID
	s.nextID++
	s.proposals[proposal.ID] = proposal.Clone()
	return proposal.ID, nil
}

func (s *ProposalStore) Get(_ context.Context, id uint64) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return domain.Proposal{}, domain.ErrUnknownProposal
	}
	return proposal.Clone(), nil
}

func (s *ProposalStore) ListPending(_ context.Context) ([]domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Proposal, 0)
	for id := uint64(1); id < s.nextID; id++ {
		proposal, ok := s.proposals[id]
		if !ok || proposal.Executed {
			continue
		}
		out = append(out, proposal.Clone())
	}
	return out, nil
}

func (s *ProposalStore) AddConfirmation(_ context.Context, id uint64, approver domain.Identity, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return domain.ErrUnknownProposal
	}
	proposal.Confirmations[approver] = at
	return nil
}

func (s *ProposalStore) RemoveConfirmation(_ context.Context, id uint64, approver domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return domain.ErrUnknownProposal
	}
	delete(proposal.Confirmations, approver)
	return nil
}

func (s *ProposalStore) MarkExecuted(_ context.Context, id uint64, at time.Time, execErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return domain.ErrUnknownProposal
	}
	proposal.Executed = true
	proposal.ExecutedAt = &at
	proposal.ExecutionErr = execErr
	s.proposals[id] = proposal
	return nil
}

func (s *ProposalStore) RemoveConfirmationsBy(_ context.Context, approvers []domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proposal := range s.proposals {
		if proposal.Executed {
			continue
		}
		for _, approver := range approvers {
			delete(proposal.Confirmations, approver)
		}
	}
	return nil
}

func (s *ProposalStore) RecordExecution(_ context.Context, _ uint64, _, _ string) error {
	return nil
}

// ConfigStore holds the authority set in memory.
type ConfigStore struct {
	mu     sync.Mutex
	cfg    domain.GovernanceConfig
	loaded bool
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

func (s *ConfigStore) Load(_ context.Context) (domain.GovernanceConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.GovernanceConfig{}, false, nil
	}
	return cloneConfig(s.cfg), true, nil
}

func (s *ConfigStore) Save(_ context.Context, cfg domain.GovernanceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cloneConfig(cfg)
	s.loaded = true
	return nil
}

func cloneConfig(cfg domain.GovernanceConfig) domain.GovernanceConfig {
	out := domain.GovernanceConfig{
		Threshold: cfg.Threshold,
		Approvers: make(map[domain.Identity]domain.Approver, len(cfg.Approvers)),
	}
	for id, approver := range cfg.Approvers {
		out.Approvers[id] = approver
	}
	return out
}
