package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cooldown holds back requests to a server that asked to be left alone
// (HTTP 503 with Retry-After) until the requested time has passed.
type Cooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Extend pushes the cooldown for key to at least now+d. It never shortens an
// existing cooldown and reports whether the deadline moved.
func (c *Cooldown) Extend(key string, d time.Duration) bool {
	if c == nil || d <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	until := c.now().Add(d)
	if !until.After(c.until[key]) {
		return false
	}
	c.until[key] = until
	return true
}

// Until returns the end of the cooldown for key, or the zero time.
func (c *Cooldown) Until(key string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until[key]
}

// Wait blocks until key is out of cooldown or ctx is done.
func (c *Cooldown) Wait(ctx context.Context, key string) error {
	if ctx == nil {
		return fmt.Errorf("Wait: nil context")
	}
	if c == nil {
		return fmt.Errorf("Wait: nil Cooldown")
	}
	if c.now == nil || c.until == nil {
		return fmt.Errorf("Wait: Cooldown not initialized (use NewCooldown)")
	}

	for {
		c.mu.Lock()
		now := c.now()
		until := c.until[key]
		c.mu.Unlock()

		if !now.Before(until) {
			return nil
		}

		timer := time.NewTimer(until.Sub(now))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
			continue
		}
	}
}
