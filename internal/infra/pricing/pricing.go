package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"tollgate/internal/domain"
)

// Table is the static per-resource pricing collaborator. Prices are
// loaded from a JSON file and refreshed out-of-band by replacing the
// table; a resource without an entry is served free.
type Table struct {
	mu     sync.RWMutex
	prices map[string]domain.ResourcePrice
}

type tableFile struct {
	Prices []domain.ResourcePrice `json:"prices"`
}

func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing table: %w", err)
	}
	var file tableFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pricing table: %w", err)
	}
	return NewTable(file.Prices)
}

func NewTable(prices []domain.ResourcePrice) (*Table, error) {
	out := make(map[string]domain.ResourcePrice, len(prices))
	for _, p := range prices {
		if p.ResourceID == "" {
			return nil, errors.New("pricing entry missing resource_id")
		}
		if p.Amount > 0 && p.Recipient == "" {
			return nil, fmt.Errorf("pricing entry %s has amount but no recipient", p.ResourceID)
		}
		out[normalize(p.ResourceID)] = p
	}
	return &Table{prices: out}, nil
}

// PriceFor returns the pricing metadata for a resource. Longest-prefix
// match over path-shaped resource IDs, so /articles can price the whole
// section while /articles/free overrides it.
func (t *Table) PriceFor(resourceID string) (domain.ResourcePrice, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := normalize(resourceID)
	for {
		if p, ok := t.prices[key]; ok {
			return p, p.Amount > 0
		}
		idx := strings.LastIndex(key, "/")
		if idx <= 0 {
			break
		}
		key = key[:idx]
	}
	return domain.ResourcePrice{}, false
}

func (t *Table) Replace(prices []domain.ResourcePrice) error {
	next, err := NewTable(prices)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.prices = next.prices
	t.mu.Unlock()
	return nil
}

func normalize(resourceID string) string {
	if !strings.HasPrefix(resourceID, "/") {
		resourceID = "/" + resourceID
	}
	return strings.TrimRight(resourceID, "/")
}
