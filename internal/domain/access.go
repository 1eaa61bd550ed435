package domain

import "time"

type RequesterClass string

const (
	RequesterHuman   RequesterClass = "human"
	RequesterCrawler RequesterClass = "crawler"
)

// ContentRequest is one incoming request for a gated resource.
type ContentRequest struct {
	ResourceID       string
	ClaimantIdentity string
	PaymentReference PaymentReference
	UserAgent        string
	RemoteAddr       string
}

// AccessChallenge is the "payment required" response payload. It is
// ephemeral; only the nonce is logged for correlation. Possession of
// the nonce grants nothing, the settled payment is what gates access.
type AccessChallenge struct {
	RequiredAmount    uint64    `json:"required_amount"`
	RequiredRecipient string    `json:"required_recipient"`
	ResourceID        string    `json:"resource_id"`
	ChallengeNonce    string    `json:"challenge_nonce"`
	IssuedAt          time.Time `json:"issued_at"`
}

type AccessOutcome struct {
	Decision  Decision
	Reason    RejectReason
	Challenge *AccessChallenge
	Content   []byte
	MediaType string
}

// ResourcePrice is the static per-resource pricing metadata supplied by
// the pricing collaborator. Amount is in the ledger's smallest unit.
type ResourcePrice struct {
	ResourceID string `json:"resource_id"`
	Amount     uint64 `json:"amount"`
	Recipient  string `json:"recipient"`
	Currency   string `json:"currency,omitempty"`
}
