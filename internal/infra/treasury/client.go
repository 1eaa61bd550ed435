package treasury

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tollgate/internal/domain"
)

const maxResponseBytes = 64 * 1024

// Client dispatches executed privileged actions against the custodial
// backend: fund transfers and, behind the same capability boundary,
// generic calls with an arbitrary target and payload.
type Client struct {
	baseURL string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("treasury base url is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpDo:  doer,
	}, nil
}

func (c *Client) Transfer(ctx context.Context, recipient string, amount uint64) error {
	payload := map[string]string{
		"recipient": recipient,
		"amount":    strconv.FormatUint(amount, 10),
	}
	return c.post(ctx, "/v1/transfers", payload)
}

func (c *Client) Call(ctx context.Context, target string, payload []byte) error {
	body := map[string]string{
		"target":  target,
		"payload": base64.StdEncoding.EncodeToString(payload),
	}
	return c.post(ctx, "/v1/calls", body)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrActionExecutionFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrActionExecutionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrActionExecutionFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: treasury returned status %d", domain.ErrActionExecutionFailed, resp.StatusCode)
	}
	return nil
}
