package fetcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight(t *testing.T) {
	var g Group[string]
	var calls int32

	fn := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
		return "production", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err, _ := g.Do("web01", fn)
			if err != nil {
				t.Errorf("Do error: %v", err)
			}
			if val != "production" {
				t.Errorf("got %v, want %v", val, "production")
			}
		}()
	}

	wg.Wait()

	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}
