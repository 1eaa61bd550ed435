package domain

import "time"

// PaymentReference is an opaque pointer to one settlement entry in the
// external ledger, typically a transaction hash. A reference authorizes
// at most one admitted access.
type PaymentReference string

type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusConfirmed LedgerStatus = "confirmed"
	LedgerStatusFailed    LedgerStatus = "failed"
	LedgerStatusUnknown   LedgerStatus = "unknown"
)

// LedgerEntry is the read-only view of one settlement. Amount is in the
// ledger's smallest unit; comparisons are exact integer comparisons.
type LedgerEntry struct {
	Reference PaymentReference
	Status    LedgerStatus
	Amount    uint64
	Payer     string
	Payee     string
	SettledAt time.Time
	Sequence  int64
}

type Decision string

const (
	DecisionAdmit     Decision = "admit"
	DecisionChallenge Decision = "challenge"
	DecisionReject    Decision = "reject"
)

type RejectReason string

const (
	RejectReplayedPayment RejectReason = "replayed_payment"
	RejectPaymentMismatch RejectReason = "payment_mismatch"
)

type VerifyResult struct {
	Decision Decision
	Reason   RejectReason
}
