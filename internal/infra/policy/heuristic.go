package policy

import (
	"context"
	"strings"

	"tollgate/internal/domain"
)

var crawlerMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"gptbot",
	"claudebot",
	"ccbot",
	"perplexitybot",
	"bytespider",
	"python-requests",
	"curl/",
	"wget/",
}

// Heuristic is the no-bundle classifier: user-agent substring matching
// plus the observation that anything presenting a payment reference or
// a claimant identity is by definition automated.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Classify(_ context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if input.HasPaymentRef || input.ClaimantIdentity != "" {
		return domain.PolicyResult{Class: domain.RequesterCrawler, Reason: "payment_claim"}, nil
	}
	ua := strings.ToLower(input.UserAgent)
	if ua == "" {
		return domain.PolicyResult{Class: domain.RequesterCrawler, Reason: "empty_user_agent"}, nil
	}
	for _, marker := range crawlerMarkers {
		if strings.Contains(ua, marker) {
			return domain.PolicyResult{Class: domain.RequesterCrawler, Reason: "user_agent:" + marker}, nil
		}
	}
	return domain.PolicyResult{Class: domain.RequesterHuman}, nil
}
