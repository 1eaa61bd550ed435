package usecase

import (
	"context"
	"errors"
	"strings"

	"tollgate/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PaymentVerifier decides ADMIT / CHALLENGE / REJECT for one claimed
// payment. The decision and the insertion into the used-payment index
// are made atomic by the index's compare-and-insert: whichever caller
// wins the insert gets the ADMIT, every other caller sees a replay.
// Ledger trouble of any kind answers CHALLENGE, never ADMIT.
type PaymentVerifier struct {
	ledger Ledger
	used   UsedPaymentIndex
	logger *zap.SugaredLogger

	lookups singleflight.Group
}

func NewPaymentVerifier(ledger Ledger, used UsedPaymentIndex, logger *zap.SugaredLogger) *PaymentVerifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PaymentVerifier{ledger: ledger, used: used, logger: logger}
}

func (v *PaymentVerifier) Verify(
	ctx context.Context,
	resourceID string,
	ref domain.PaymentReference,
	requiredAmount uint64,
	requiredRecipient string,
) (domain.VerifyResult, error) {
	if ref == "" {
		return domain.VerifyResult{Decision: domain.DecisionChallenge}, nil
	}

	used, err := v.used.IsUsed(ctx, ref)
	if err != nil {
		// Index trouble is indistinguishable from "maybe spent": fail
		// closed with a challenge rather than risk a double spend.
		v.logger.Warnw("used-payment index read failed", "reference", ref, "error", err)
		return domain.VerifyResult{Decision: domain.DecisionChallenge}, nil
	}
	if used {
		return domain.VerifyResult{Decision: domain.DecisionReject, Reason: domain.RejectReplayedPayment}, nil
	}

	entry, err := v.lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			v.logger.Warnw("ledger lookup failed, challenging",
				"reference", ref, "resource", resourceID, "error", err)
			return domain.VerifyResult{Decision: domain.DecisionChallenge}, nil
		}
		return domain.VerifyResult{}, err
	}

	switch entry.Status {
	case domain.LedgerStatusConfirmed:
		// fall through to amount and recipient checks
	case domain.LedgerStatusPending, domain.LedgerStatusUnknown, domain.LedgerStatusFailed:
		// Pending settles later, unknown may appear later, failed can be
		// replaced by a fresh payment. All three mean "not proven paid".
		return domain.VerifyResult{Decision: domain.DecisionChallenge}, nil
	default:
		return domain.VerifyResult{Decision: domain.DecisionChallenge}, nil
	}

	if entry.Amount < requiredAmount || !recipientMatches(entry.Payee, requiredRecipient) {
		v.logger.Infow("payment mismatch",
			"reference", ref, "resource", resourceID,
			"amount", entry.Amount, "required_amount", requiredAmount,
			"payee", entry.Payee, "required_recipient", requiredRecipient)
		return domain.VerifyResult{Decision: domain.DecisionReject, Reason: domain.RejectPaymentMismatch}, nil
	}

	inserted, err := v.used.MarkUsed(ctx, ref)
	if err != nil {
		v.logger.Warnw("used-payment index insert failed", "reference", ref, "error", err)
		return domain.VerifyResult{Decision: domain.DecisionChallenge}, nil
	}
	if !inserted {
		// Lost the compare-and-insert race; someone else got the one
		// admission this reference is worth.
		return domain.VerifyResult{Decision: domain.DecisionReject, Reason: domain.RejectReplayedPayment}, nil
	}
	return domain.VerifyResult{Decision: domain.DecisionAdmit}, nil
}

// lookup coalesces concurrent ledger queries for the same reference.
// Only the lookup is shared, never the admit decision.
func (v *PaymentVerifier) lookup(ctx context.Context, ref domain.PaymentReference) (domain.LedgerEntry, error) {
	value, err, _ := v.lookups.Do(string(ref), func() (any, error) {
		return v.ledger.Lookup(ctx, ref)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return value.(domain.LedgerEntry), nil
}

func recipientMatches(payee, required string) bool {
	return strings.EqualFold(strings.TrimSpace(payee), strings.TrimSpace(required))
}
