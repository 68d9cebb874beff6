package fetcher

import (
	"context"
	"testing"
	"time"
)

func TestCooldown(t *testing.T) {
	fixedNow := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Wait without cooldown returns immediately", func(t *testing.T) {
		c := NewCooldown()
		c.now = func() time.Time { return fixedNow }

		if err := c.Wait(context.Background(), "puppet:8140"); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	})

	t.Run("Extend blocks waiters until deadline", func(t *testing.T) {
		c := NewCooldown()
		c.now = func() time.Time { return fixedNow }

		if !c.Extend("puppet:8140", 60*time.Second) {
			t.Fatalf("Expected Extend to move the deadline")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := c.Wait(ctx, "puppet:8140"); err == nil {
			t.Fatalf("Expected context deadline exceeded during cooldown")
		}
		if err := c.Wait(context.Background(), "other:8140"); err != nil {
			t.Fatalf("Expected other servers to be unaffected, got %v", err)
		}
	})

	t.Run("Extend never shortens", func(t *testing.T) {
		c := NewCooldown()
		c.now = func() time.Time { return fixedNow }

		c.Extend("puppet:8140", 60*time.Second)
		if c.Extend("puppet:8140", 10*time.Second) {
			t.Fatalf("Expected shorter cooldown to be ignored")
		}
		if got := c.Until("puppet:8140"); !got.Equal(fixedNow.Add(60 * time.Second)) {
			t.Fatalf("Expected cooldown %v, got %v", fixedNow.Add(60*time.Second), got)
		}
		if c.Extend("puppet:8140", 0) {
			t.Fatalf("Expected zero duration to be ignored")
		}
	})

	t.Run("Wait returns once cooldown elapses", func(t *testing.T) {
		c := NewCooldown()
		c.Extend("puppet:8140", 15*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		start := time.Now()
		if err := c.Wait(ctx, "puppet:8140"); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
		if time.Since(start) < 10*time.Millisecond {
			t.Fatalf("Expected Wait to block for the cooldown")
		}
	})

	t.Run("Invalid inputs fail fast", func(t *testing.T) {
		var nilCtx context.Context
		if err := NewCooldown().Wait(nilCtx, "x"); err == nil {
			t.Fatalf("Expected error for nil context")
		}
		if err := (&Cooldown{}).Wait(context.Background(), "x"); err == nil {
			t.Fatalf("Expected error for uninitialized cooldown")
		}
	})
}
