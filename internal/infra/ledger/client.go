package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tollgate/internal/domain"
)

const maxResponseBytes = 64 * 1024

// Client is a read-only view of the external settlement ledger. The
// gateway never writes through it; settlement is the payer's problem.
type Client struct {
	baseURL string
	timeout time.Duration
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("ledger base url is required")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpDo:  doer,
	}, nil
}

type settlementResponse struct {
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Payer     string `json:"payer"`
	Payee     string `json:"payee"`
	SettledAt string `json:"settled_at,omitempty"`
	Sequence  int64  `json:"sequence,omitempty"`
}

// Lookup fetches the settlement entry for ref. Transport, decode, and
// timeout failures map to ErrLedgerUnavailable so callers can fail
// closed; an entry the ledger does not know comes back with status
// unknown, not an error.
func (c *Client) Lookup(ctx context.Context, ref domain.PaymentReference) (domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v1/settlements/" + url.PathEscape(string(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.LedgerEntry{Reference: ref, Status: domain.LedgerStatusUnknown}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger returned status %d", domain.ErrLedgerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	var payload settlementResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return entryFromResponse(ref, payload)
}

func entryFromResponse(ref domain.PaymentReference, payload settlementResponse) (domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		Reference: ref,
		Payer:     payload.Payer,
		Payee:     payload.Payee,
		Sequence:  payload.Sequence,
	}
	switch domain.LedgerStatus(payload.Status) {
	case domain.LedgerStatusPending, domain.LedgerStatusConfirmed, domain.LedgerStatusFailed:
		entry.Status = domain.LedgerStatus(payload.Status)
	default:
		entry.Status = domain.LedgerStatusUnknown
	}
	if payload.Amount != "" {
		// Amounts arrive as decimal strings in base units; never parsed
		// through floating point.
		amount, err := strconv.ParseUint(payload.Amount, 10, 64)
		if err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("%w: invalid amount %q", domain.ErrLedgerUnavailable, payload.Amount)
		}
		entry.Amount = amount
	}
	if payload.SettledAt != "" {
		settledAt, err := time.Parse(time.RFC3339, payload.SettledAt)
		if err == nil {
			entry.SettledAt = settledAt
		}
	}
	return entry, nil
}
