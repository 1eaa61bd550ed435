package usedpayments

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryIndexMarkUsedOnce(t *testing.T) {
	index := NewMemoryIndex(nil)
	ctx := context.Background()

	inserted, err := index.MarkUsed(ctx, "0xabc")
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to succeed")
	}
	inserted, err = index.MarkUsed(ctx, "0xabc")
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if inserted {
		t.Fatal("expected second insert to fail")
	}
	used, err := index.IsUsed(ctx, "0xabc")
	if err != nil {
		t.Fatalf("is used: %v", err)
	}
	if !used {
		t.Fatal("expected reference to be used")
	}
}

func TestMemoryIndexConcurrentSingleWinner(t *testing.T) {
	index := NewMemoryIndex(nil)
	ctx := context.Background()

	const goroutines = 64
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := index.MarkUsed(ctx, "contended")
			if err != nil {
				t.Errorf("mark used: %v", err)
				return
			}
			if inserted {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestMemoryIndexRejectsEmptyReference(t *testing.T) {
	index := NewMemoryIndex(nil)
	if _, err := index.MarkUsed(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty reference")
	}
}
