package usecase

import (
	"context"
	"strings"
	"testing"

	"tollgate/internal/domain"
	"tollgate/internal/infra/usedpayments"
)

type uaClassifier struct{}

func (uaClassifier) Classify(_ context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if input.HasPaymentRef || strings.Contains(strings.ToLower(input.UserAgent), "bot") {
		return domain.PolicyResult{Class: domain.RequesterCrawler}, nil
	}
	return domain.PolicyResult{Class: domain.RequesterHuman}, nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(_ context.Context, _ domain.PolicyInput) (domain.PolicyResult, error) {
	return domain.PolicyResult{}, context.DeadlineExceeded
}

type staticPricer struct {
	prices map[string]domain.ResourcePrice
}

func (p staticPricer) PriceFor(resourceID string) (domain.ResourcePrice, bool) {
	price, ok := p.prices[resourceID]
	return price, ok && price.Amount > 0
}

type staticContent struct {
	body []byte
}

func (c staticContent) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	return c.body, "text/html", nil
}

func newTestGate(classifier domain.RequesterClassifier, ledger Ledger) *AccessGate {
	verifier := NewPaymentVerifier(ledger, usedpayments.NewMemoryIndex(nil), nil)
	pricer := staticPricer{prices: map[string]domain.ResourcePrice{
		"/premium/report": {ResourceID: "/premium/report", Amount: 10000, Recipient: "PUB1", Currency: "USDC.base"},
	}}
	return NewAccessGate(classifier, pricer, verifier, staticContent{body: []byte("<html>report</html>")}, nil)
}

func TestHumanBypassesPayment(t *testing.T) {
	gate := newTestGate(uaClassifier{}, &fakeLedger{})
	outcome, err := gate.Handle(context.Background(), domain.ContentRequest{
		ResourceID: "/premium/report",
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64)",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionAdmit {
		t.Fatalf("expected admit for human, got %s", outcome.Decision)
	}
	if len(outcome.Content) == 0 {
		t.Fatal("expected content for admitted request")
	}
}

func TestCrawlerUnpricedResourceIsFree(t *testing.T) {
	gate := newTestGate(uaClassifier{}, &fakeLedger{})
	outcome, err := gate.Handle(context.Background(), domain.ContentRequest{
		ResourceID: "/blog/post",
		UserAgent:  "ExampleBot/1.0",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionAdmit {
		t.Fatalf("expected admit for unpriced resource, got %s", outcome.Decision)
	}
}

func TestCrawlerChallengeSettleAdmitReplay(t *testing.T) {
	ledger := &fakeLedger{}
	gate := newTestGate(uaClassifier{}, ledger)
	ctx := context.Background()

	// First contact: no payment reference.
	outcome, err := gate.Handle(ctx, domain.ContentRequest{
		ResourceID: "/premium/report",
		UserAgent:  "ExampleBot/1.0",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionChallenge {
		t.Fatalf("expected challenge, got %s", outcome.Decision)
	}
	if outcome.Challenge == nil {
		t.Fatal("challenge payload missing")
	}
	if outcome.Challenge.RequiredAmount != 10000 || outcome.Challenge.RequiredRecipient != "PUB1" {
		t.Fatalf("unexpected challenge %+v", outcome.Challenge)
	}
	if outcome.Challenge.ChallengeNonce == "" {
		t.Fatal("challenge nonce missing")
	}

	// Crawler settles the exact amount and retries.
	ledger.settle("0xsettled", 10000, "PUB1")
	outcome, err = gate.Handle(ctx, domain.ContentRequest{
		ResourceID:       "/premium/report",
		UserAgent:        "ExampleBot/1.0",
		PaymentReference: "0xsettled",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionAdmit {
		t.Fatalf("expected admit after settlement, got %+v", outcome)
	}

	// Same reference a second time: rejected as a replay.
	outcome, err = gate.Handle(ctx, domain.ContentRequest{
		ResourceID:       "/premium/report",
		UserAgent:        "ExampleBot/1.0",
		PaymentReference: "0xsettled",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionReject || outcome.Reason != domain.RejectReplayedPayment {
		t.Fatalf("expected replay rejection, got %+v", outcome)
	}
}

func TestClassifierFailureTreatedAsCrawler(t *testing.T) {
	gate := newTestGate(failingClassifier{}, &fakeLedger{})
	outcome, err := gate.Handle(context.Background(), domain.ContentRequest{
		ResourceID: "/premium/report",
		UserAgent:  "Mozilla/5.0",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionChallenge {
		t.Fatalf("classifier failure must fail toward challenge, got %s", outcome.Decision)
	}
}

func TestPendingPaymentKeepsChallenging(t *testing.T) {
	ledger := &fakeLedger{entries: map[domain.PaymentReference]domain.LedgerEntry{
		"0xpending": {Reference: "0xpending", Status: domain.LedgerStatusPending, Amount: 10000, Payee: "PUB1"},
	}}
	gate := newTestGate(uaClassifier{}, ledger)

	outcome, err := gate.Handle(context.Background(), domain.ContentRequest{
		ResourceID:       "/premium/report",
		UserAgent:        "ExampleBot/1.0",
		PaymentReference: "0xpending",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome.Decision != domain.DecisionChallenge {
		t.Fatalf("expected challenge for pending settlement, got %s", outcome.Decision)
	}
}
