package usecase

import (
	"context"
	"time"

	"tollgate/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccessGate orchestrates one content request: classify the requester,
// consult pricing, gate automated traffic through the payment verifier,
// and forward admitted requests to the origin. Humans and unpriced
// resources bypass payment entirely.
type AccessGate struct {
	classifier domain.RequesterClassifier
	pricer     Pricer
	verifier   *PaymentVerifier
	content    ContentFetcher
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewAccessGate(
	classifier domain.RequesterClassifier,
	pricer Pricer,
	verifier *PaymentVerifier,
	content ContentFetcher,
	logger *zap.SugaredLogger,
) *AccessGate {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AccessGate{
		classifier: classifier,
		pricer:     pricer,
		verifier:   verifier,
		content:    content,
		logger:     logger,
		now:        time.Now,
	}
}

func (g *AccessGate) Handle(ctx context.Context, request domain.ContentRequest) (domain.AccessOutcome, error) {
	classification, err := g.classifier.Classify(ctx, domain.PolicyInput{
		ResourceID:       request.ResourceID,
		UserAgent:        request.UserAgent,
		RemoteAddr:       request.RemoteAddr,
		ClaimantIdentity: request.ClaimantIdentity,
		HasPaymentRef:    request.PaymentReference != "",
	})
	if err != nil {
		// An unclassifiable request is treated as automated; the worst
		// case is a human seeing a challenge, never a free crawl.
		g.logger.Warnw("requester classification failed", "resource", request.ResourceID, "error", err)
		classification = domain.PolicyResult{Class: domain.RequesterCrawler, Reason: "classifier_error"}
	}
	if classification.Class == domain.RequesterHuman {
		return g.fetch(ctx, request.ResourceID)
	}

	price, priced := g.pricer.PriceFor(request.ResourceID)
	if !priced {
		return g.fetch(ctx, request.ResourceID)
	}

	result, err := g.verifier.Verify(ctx, request.ResourceID, request.PaymentReference, price.Amount, price.Recipient)
	if err != nil {
		return domain.AccessOutcome{}, err
	}

	switch result.Decision {
	case domain.DecisionAdmit:
		g.logger.Infow("payment admitted",
			"resource", request.ResourceID, "reference", request.PaymentReference)
		return g.fetch(ctx, request.ResourceID)

	case domain.DecisionReject:
		g.logger.Infow("payment rejected",
			"resource", request.ResourceID, "reference", request.PaymentReference, "reason", result.Reason)
		return domain.AccessOutcome{Decision: domain.DecisionReject, Reason: result.Reason}, nil

	default:
		challenge := g.buildChallenge(request.ResourceID, price)
		g.logger.Infow("payment challenge issued",
			"resource", request.ResourceID, "nonce", challenge.ChallengeNonce,
			"required_amount", challenge.RequiredAmount, "classifier_reason", classification.Reason)
		return domain.AccessOutcome{Decision: domain.DecisionChallenge, Challenge: &challenge}, nil
	}
}

func (g *AccessGate) fetch(ctx context.Context, resourceID string) (domain.AccessOutcome, error) {
	body, mediaType, err := g.content.Fetch(ctx, resourceID)
	if err != nil {
		return domain.AccessOutcome{}, err
	}
	return domain.AccessOutcome{
		Decision:  domain.DecisionAdmit,
		Content:   body,
		MediaType: mediaType,
	}, nil
}

// buildChallenge synthesizes the 402 payload. The nonce is for log
// correlation only; possession of it grants nothing.
func (g *AccessGate) buildChallenge(resourceID string, price domain.ResourcePrice) domain.AccessChallenge {
	return domain.AccessChallenge{
		RequiredAmount:    price.Amount,
		RequiredRecipient: price.Recipient,
		ResourceID:        resourceID,
		ChallengeNonce:    uuid.NewString(),
		IssuedAt:          g.now().UTC(),
	}
}
