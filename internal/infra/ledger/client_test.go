package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tollgate/internal/domain"
)

func TestLookupConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/settlements/0xabc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"confirmed","amount":"10000","payer":"CRAWL1","payee":"PUB1","settled_at":"2026-08-01T12:00:00Z","sequence":42}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	entry, err := client.Lookup(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.Status != domain.LedgerStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", entry.Status)
	}
	if entry.Amount != 10000 {
		t.Fatalf("expected amount 10000, got %d", entry.Amount)
	}
	if entry.Payee != "PUB1" {
		t.Fatalf("expected payee PUB1, got %s", entry.Payee)
	}
	if entry.Sequence != 42 {
		t.Fatalf("expected sequence 42, got %d", entry.Sequence)
	}
}

func TestLookupNotFoundIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	entry, err := client.Lookup(context.Background(), "missing")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.Status != domain.LedgerStatusUnknown {
		t.Fatalf("expected unknown, got %s", entry.Status)
	}
}

func TestLookupServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Lookup(context.Background(), "ref"); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable, got %v", err)
	}
}

func TestLookupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 20*time.Millisecond, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Lookup(context.Background(), "slow"); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable on timeout, got %v", err)
	}
}

func TestLookupBadAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"confirmed","amount":"12.5"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Lookup(context.Background(), "frac"); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable for fractional amount, got %v", err)
	}
}
