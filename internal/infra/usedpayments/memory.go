package usedpayments

import (
	"context"
	"errors"
	"sync"
	"time"

	"tollgate/internal/domain"
)

// MemoryIndex is the in-process used-payment set for tests and dev
// mode. It does not survive restarts; production deployments configure
// redis or postgres.
type MemoryIndex struct {
	mu   sync.Mutex
	used map[domain.PaymentReference]time.Time
	now  func() time.Time
}

func NewMemoryIndex(now func() time.Time) *MemoryIndex {
	if now == nil {
		now = time.Now
	}
	return &MemoryIndex{
		used: make(map[domain.PaymentReference]time.Time),
		now:  now,
	}
}

func (m *MemoryIndex) MarkUsed(_ context.Context, ref domain.PaymentReference) (bool, error) {
	if ref == "" {
		return false, errors.New("payment reference is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.used[ref]; ok {
		return false, nil
	}
	m.used[ref] = m.now()
	return true, nil
}

func (m *MemoryIndex) IsUsed(_ context.Context, ref domain.PaymentReference) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.used[ref]
	return ok, nil
}
