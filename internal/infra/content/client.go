package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tollgate/internal/domain"
)

const maxContentBytes = 16 * 1024 * 1024

// Client fetches admitted content from the publisher's origin. The
// gate forwards the origin response unchanged; caching and storage are
// the origin's concern.
type Client struct {
	baseURL string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("origin base url is required")
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

func (c *Client) Fetch(ctx context.Context, resourceID string) ([]byte, string, error) {
	if !strings.HasPrefix(resourceID, "/") {
		resourceID = "/" + resourceID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+resourceID, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpDo(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("origin returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
