package domain

import "context"

// PolicyInput is the requester-classification input handed to the
// policy engine for each content request.
type PolicyInput struct {
	ResourceID       string `json:"resource_id"`
	UserAgent        string `json:"user_agent"`
	RemoteAddr       string `json:"remote_addr"`
	ClaimantIdentity string `json:"claimant_identity,omitempty"`
	HasPaymentRef    bool   `json:"has_payment_ref"`
}

type PolicyResult struct {
	Class  RequesterClass `json:"class"`
	Reason string         `json:"reason,omitempty"`
}

// RequesterClassifier decides whether a request is human traffic (free)
// or automated traffic (payment gated). Classification quality is an
// external concern; the gate only consumes the verdict.
type RequesterClassifier interface {
	Classify(ctx context.Context, input PolicyInput) (PolicyResult, error)
}
