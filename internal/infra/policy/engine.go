package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tollgate/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.tollgate.policy.result"

// Engine classifies requesters with a rego bundle. The bundle's result
// document carries {"class": "human"|"crawler", "reason": "..."}.
type Engine struct {
	query rego.PreparedEvalQuery
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy bundle: %w", err)
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Classify(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}
	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	switch result.Class {
	case domain.RequesterHuman, domain.RequesterCrawler:
		return result, nil
	default:
		return domain.PolicyResult{}, fmt.Errorf("policy returned unknown class %q", result.Class)
	}
}

func decodeResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}
