package usecase

import (
	"context"
	"time"

	"tollgate/internal/domain"
)

// ProposalRepository persists proposals and confirmation rows. The
// registry serializes all calls; implementations only need to be safe
// for concurrent reads.
type ProposalRepository interface {
	Create(ctx context.Context, proposal domain.Proposal) (uint64, error)
	Get(ctx context.Context, id uint64) (domain.Proposal, error)
	ListPending(ctx context.Context) ([]domain.Proposal, error)
	AddConfirmation(ctx context.Context, id uint64, approver domain.Identity, at time.Time) error
	RemoveConfirmation(ctx context.Context, id uint64, approver domain.Identity) error
	MarkExecuted(ctx context.Context, id uint64, at time.Time, execErr string) error
	RemoveConfirmationsBy(ctx context.Context, approvers []domain.Identity) error
	RecordExecution(ctx context.Context, proposalID uint64, outcome, detail string) error
}

type GovernanceConfigRepository interface {
	Load(ctx context.Context) (domain.GovernanceConfig, bool, error)
	Save(ctx context.Context, cfg domain.GovernanceConfig) error
}

// UsedPaymentIndex is the durable at-most-once-spend set. MarkUsed is
// a compare-and-insert: it reports true for exactly one caller per
// reference, ever.
type UsedPaymentIndex interface {
	MarkUsed(ctx context.Context, ref domain.PaymentReference) (bool, error)
	IsUsed(ctx context.Context, ref domain.PaymentReference) (bool, error)
}

type Ledger interface {
	Lookup(ctx context.Context, ref domain.PaymentReference) (domain.LedgerEntry, error)
}

// Treasury dispatches fund transfers and generic calls against the
// custodial backend.
type Treasury interface {
	Transfer(ctx context.Context, recipient string, amount uint64) error
	Call(ctx context.Context, target string, payload []byte) error
}

type ContentFetcher interface {
	Fetch(ctx context.Context, resourceID string) (body []byte, mediaType string, err error)
}

type Pricer interface {
	PriceFor(resourceID string) (domain.ResourcePrice, bool)
}
