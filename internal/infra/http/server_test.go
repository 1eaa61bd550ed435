package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tollgate/internal/config"
	"tollgate/internal/domain"
	"tollgate/internal/infra/crypto"
	"tollgate/internal/infra/govmem"
	"tollgate/internal/infra/ratelimit"
	"tollgate/internal/infra/usedpayments"
	"tollgate/internal/usecase"

	"github.com/gin-gonic/gin"
)

type testLedger struct {
	mu      sync.Mutex
	entries map[domain.PaymentReference]domain.LedgerEntry
}

func (l *testLedger) Lookup(_ context.Context, ref domain.PaymentReference) (domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[ref]
	if !ok {
		return domain.LedgerEntry{Reference: ref, Status: domain.LedgerStatusUnknown}, nil
	}
	return entry, nil
}

func (l *testLedger) settle(ref domain.PaymentReference, amount uint64, payee string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[domain.PaymentReference]domain.LedgerEntry)
	}
	l.entries[ref] = domain.LedgerEntry{
		Reference: ref,
		Status:    domain.LedgerStatusConfirmed,
		Amount:    amount,
		Payee:     payee,
	}
}

type testClassifier struct{}

func (testClassifier) Classify(_ context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if input.HasPaymentRef || strings.Contains(strings.ToLower(input.UserAgent), "bot") {
		return domain.PolicyResult{Class: domain.RequesterCrawler}, nil
	}
	return domain.PolicyResult{Class: domain.RequesterHuman}, nil
}

type testPricer struct {
	prices map[string]domain.ResourcePrice
}

func (p testPricer) PriceFor(resourceID string) (domain.ResourcePrice, bool) {
	price, ok := p.prices[resourceID]
	return price, ok && price.Amount > 0
}

type testContent struct{}

func (testContent) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	return []byte("<html>report</html>"), "text/html", nil
}

type testTreasury struct {
	mu        sync.Mutex
	transfers []string
}

func (f *testTreasury) Transfer(_ context.Context, recipient string, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, recipient)
	return nil
}

func (f *testTreasury) Call(_ context.Context, _ string, _ []byte) error { return nil }

func (f *testTreasury) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

type approverKey struct {
	identity domain.Identity
	priv     ed25519.PrivateKey
}

func newApproverKey(t *testing.T) approverKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return approverKey{
		identity: domain.Identity(base64.StdEncoding.EncodeToString(pub)),
		priv:     priv,
	}
}

type serverFixture struct {
	server   *Server
	ledger   *testLedger
	treasury *testTreasury
	keys     []approverKey
}

func newTestServer(t *testing.T, approvers int, threshold uint) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys := make([]approverKey, 0, approvers)
	bootstrap := domain.GovernanceConfig{
		Threshold: threshold,
		Approvers: make(map[domain.Identity]domain.Approver, approvers),
	}
	for i := 0; i < approvers; i++ {
		key := newApproverKey(t)
		keys = append(keys, key)
		bootstrap.Approvers[key.identity] = domain.Approver{Identity: key.identity, Active: true}
	}

	treasury := &testTreasury{}
	executor := usecase.NewProposalExecutor(treasury, nil)
	registry, err := usecase.NewApprovalRegistry(
		context.Background(),
		govmem.NewProposalStore(),
		govmem.NewConfigStore(),
		executor,
		bootstrap,
		nil,
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	ledger := &testLedger{}
	verifier := usecase.NewPaymentVerifier(ledger, usedpayments.NewMemoryIndex(nil), nil)
	pricer := testPricer{prices: map[string]domain.ResourcePrice{
		"/premium/report": {ResourceID: "/premium/report", Amount: 10000, Recipient: "PUB1", Currency: "USDC.base"},
	}}
	gate := usecase.NewAccessGate(testClassifier{}, pricer, verifier, testContent{}, nil)

	server := NewServerWithDeps(config.Config{HTTPAddr: ":0"}, ServerDeps{
		Gate:        gate,
		Registry:    registry,
		Signatures:  crypto.NewService(),
		AdminAPIKey: "test-admin-key",
	}, nil)

	return &serverFixture{server: server, ledger: ledger, treasury: treasury, keys: keys}
}

func (f *serverFixture) signedRequest(method, path string, body []byte, key approverKey) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	message := body
	if len(message) == 0 {
		message = []byte(path)
	}
	req.Header.Set("X-Approver", string(key.identity))
	req.Header.Set("X-Signature", base64.StdEncoding.EncodeToString(ed25519.Sign(key.priv, message)))
	return req
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.r.ServeHTTP(w, req)
	return w
}

func TestContentChallengeSettleAdmitReplay(t *testing.T) {
	f := newTestServer(t, 1, 1)

	// First contact from a crawler: 402 with the payment terms.
	req := httptest.NewRequest(http.MethodGet, "/content/premium/report", nil)
	req.Header.Set("User-Agent", "ExampleBot/1.0")
	w := f.do(req)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("x402-price"); got != "10000" {
		t.Fatalf("unexpected x402-price %q", got)
	}
	if got := w.Header().Get("x402-recipient"); got != "PUB1" {
		t.Fatalf("unexpected x402-recipient %q", got)
	}
	var challenge challengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}
	if challenge.RequiredAmount != 10000 || challenge.ChallengeNonce == "" {
		t.Fatalf("unexpected challenge %+v", challenge)
	}

	// Crawler settles and retries with the reference as a bearer token.
	f.ledger.settle("0xabc", 10000, "PUB1")
	req = httptest.NewRequest(http.MethodGet, "/content/premium/report", nil)
	req.Header.Set("User-Agent", "ExampleBot/1.0")
	req.Header.Set("Authorization", "Bearer 0xabc")
	w = f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after settlement, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "report") {
		t.Fatalf("expected content body, got %q", w.Body.String())
	}

	// Same reference again: replay.
	req = httptest.NewRequest(http.MethodGet, "/content/premium/report", nil)
	req.Header.Set("User-Agent", "ExampleBot/1.0")
	req.Header.Set("Authorization", "Bearer 0xabc")
	w = f.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on replay, got %d", w.Code)
	}
	var errResp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != string(domain.RejectReplayedPayment) {
		t.Fatalf("expected replayed_payment, got %q", errResp.Code)
	}
}

func TestContentHumanBypassesPayment(t *testing.T) {
	f := newTestServer(t, 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/content/premium/report", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	w := f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for human, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGovernanceSubmitConfirmExecute(t *testing.T) {
	f := newTestServer(t, 2, 2)

	action, _ := json.Marshal(domain.Action{
		Kind:      domain.ActionTransferFunds,
		Recipient: "payout-account",
		Amount:    500,
	})
	w := f.do(f.signedRequest(http.MethodPost, "/v1/governance/proposals", action, f.keys[0]))
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var submitted submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submitted.Executed {
		t.Fatal("proposal must not execute below threshold")
	}
	if f.treasury.count() != 0 {
		t.Fatal("treasury called before threshold")
	}

	path := "/v1/governance/proposals/1/confirm"
	w = f.do(f.signedRequest(http.MethodPost, path, nil, f.keys[1]))
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var confirmed submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &confirmed); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if !confirmed.Executed {
		t.Fatal("proposal must execute at threshold")
	}
	if f.treasury.count() != 1 {
		t.Fatalf("expected one transfer, got %d", f.treasury.count())
	}
}

func TestGovernanceRejectsBadSignature(t *testing.T) {
	f := newTestServer(t, 2, 2)

	action, _ := json.Marshal(domain.Action{
		Kind: domain.ActionTransferFunds, Recipient: "x", Amount: 1,
	})

	// Signature from the wrong key.
	req := httptest.NewRequest(http.MethodPost, "/v1/governance/proposals", bytes.NewReader(action))
	req.Header.Set("X-Approver", string(f.keys[0].identity))
	req.Header.Set("X-Signature", base64.StdEncoding.EncodeToString(ed25519.Sign(f.keys[1].priv, action)))
	w := f.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", w.Code)
	}

	// Missing headers entirely.
	req = httptest.NewRequest(http.MethodPost, "/v1/governance/proposals", bytes.NewReader(action))
	w = f.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing headers, got %d", w.Code)
	}
}

func TestGovernanceRejectsNonApprover(t *testing.T) {
	f := newTestServer(t, 1, 1)
	outsider := newApproverKey(t)

	action, _ := json.Marshal(domain.Action{
		Kind: domain.ActionTransferFunds, Recipient: "x", Amount: 1,
	})
	w := f.do(f.signedRequest(http.MethodPost, "/v1/governance/proposals", action, outsider))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-approver, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGovernanceRevoke(t *testing.T) {
	f := newTestServer(t, 2, 2)

	action, _ := json.Marshal(domain.Action{
		Kind: domain.ActionTransferFunds, Recipient: "x", Amount: 1,
	})
	w := f.do(f.signedRequest(http.MethodPost, "/v1/governance/proposals", action, f.keys[0]))
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d: %s", w.Code, w.Body.String())
	}

	path := "/v1/governance/proposals/1/revoke"
	w = f.do(f.signedRequest(http.MethodPost, path, nil, f.keys[0]))
	if w.Code != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// The proposer's confirmation is gone; a confirm from the second
	// approver alone no longer reaches the threshold.
	w = f.do(f.signedRequest(http.MethodPost, "/v1/governance/proposals/1/confirm", nil, f.keys[1]))
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: %d: %s", w.Code, w.Body.String())
	}
	var state submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Executed {
		t.Fatal("proposal executed with only one live confirmation")
	}
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	f := newTestServer(t, 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/v1/governance/config", nil)
	w := f.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without admin key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/governance/config", nil)
	req.Header.Set("X-Admin-API-Key", "wrong")
	w = f.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong admin key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/governance/config", nil)
	req.Header.Set("X-Admin-API-Key", "test-admin-key")
	w = f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with admin key, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "threshold") {
		t.Fatalf("unexpected config body %q", w.Body.String())
	}
}

func TestContentRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newTestServer(t, 1, 1)

	limited := NewServerWithDeps(config.Config{
		HTTPAddr:               ":0",
		RateLimitRequests:      1,
		RateLimitWindowSeconds: 60,
	}, ServerDeps{
		Gate:        f.server.gate,
		Registry:    f.server.registry,
		Signatures:  crypto.NewService(),
		RateLimiter: ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: 16}),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/content/blog/post", nil)
	req.Header.Set("User-Agent", "ExampleBot/1.0")
	w := httptest.NewRecorder()
	limited.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/content/blog/post", nil)
	req.Header.Set("User-Agent", "ExampleBot/1.0")
	w = httptest.NewRecorder()
	limited.r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newTestServer(t, 1, 1)
	w := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
