package ratelimit

import (
	"fmt"
	"sync"
	"testing"
)

func TestCache_BlockUnblock(t *testing.T) {
	c := NewCache()

	if c.Blocked("k") {
		t.Fatal("fresh cache should hold no blocks")
	}

	c.Block("k")
	if !c.Blocked("k") {
		t.Fatal("Blocked should report a recorded block")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}

	// Blocking twice is idempotent.
	c.Block("k")
	if c.Len() != 1 {
		t.Fatalf("Len after double block = %d, want 1", c.Len())
	}

	c.Unblock("k")
	if c.Blocked("k") {
		t.Fatal("Unblock should clear the entry")
	}

	// Unblocking an absent key is a no-op.
	c.Unblock("missing")
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%4)
			for j := 0; j < 100; j++ {
				c.Block(key)
				c.Blocked(key)
				c.Unblock(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 0 {
		t.Fatalf("Len after concurrent churn = %d, want 0", c.Len())
	}
}
