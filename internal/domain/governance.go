package domain

import "time"

// Identity is an approver's public identity: the base64-encoded
// ed25519 public key it signs governance calls with.
type Identity string

type Approver struct {
	Identity Identity `json:"identity"`
	Active   bool     `json:"active"`
	AddedAt  time.Time `json:"added_at"`
}

// GovernanceConfig is the authority set for privileged operations.
// It is never mutated directly; changes flow through an executed
// ChangeApprovers or ChangeThreshold proposal.
type GovernanceConfig struct {
	Threshold uint
	Approvers map[Identity]Approver
}

func (c GovernanceConfig) IsApprover(id Identity) bool {
	a, ok := c.Approvers[id]
	return ok && a.Active
}

func (c GovernanceConfig) Validate() error {
	if c.Threshold < 1 || c.Threshold > uint(len(c.Approvers)) {
		return ErrInvalidThreshold
	}
	return nil
}

type ActionKind string

const (
	ActionTransferFunds   ActionKind = "transfer_funds"
	ActionChangeApprovers ActionKind = "change_approvers"
	ActionChangeThreshold ActionKind = "change_threshold"
	ActionGenericCall     ActionKind = "generic_call"
)

// Action is a closed tagged variant describing a privileged operation.
// Exactly the fields for the given Kind are set.
type Action struct {
	Kind ActionKind `json:"kind"`

	Recipient string `json:"recipient,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`

	Approvers []Identity `json:"approvers,omitempty"`
	Threshold uint       `json:"threshold,omitempty"`

	Target  string `json:"target,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

type Proposal struct {
	ID            uint64
	Action        Action
	Proposer      Identity
	CreatedAt     time.Time
	Confirmations map[Identity]time.Time
	Executed      bool
	ExecutedAt    *time.Time
	ExecutionErr  string
}

func (p Proposal) Confirmed(id Identity) bool {
	_, ok := p.Confirmations[id]
	return ok
}

func (p Proposal) ConfirmationCount() uint {
	return uint(len(p.Confirmations))
}

// Clone returns a deep copy so registry callers never share the
// registry's confirmation map.
func (p Proposal) Clone() Proposal {
	out := p
	out.Confirmations = make(map[Identity]time.Time, len(p.Confirmations))
	for id, at := range p.Confirmations {
		out.Confirmations[id] = at
	}
	if p.ExecutedAt != nil {
		at := *p.ExecutedAt
		out.ExecutedAt = &at
	}
	return out
}
