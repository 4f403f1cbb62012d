package session

import (
	"context"
	"sync"
	"time"
)

// Countdown decrements a number of seconds once per tick and calls onExpire when it reaches zero.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	cancel    context.CancelFunc
}

// StartCountdown starts ticking in a background goroutine. onExpire runs at most once, on that
// goroutine. A Stop racing with expiry may return before onExpire runs, so onExpire must tolerate
// being called for a countdown that was just stopped.
func StartCountdown(seconds int, tick time.Duration, onExpire func()) *Countdown {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Countdown{remaining: seconds, cancel: cancel}

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if c.decrement() {
					onExpire()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return c
}

// decrement reports true exactly once, when the countdown expires.
func (c *Countdown) decrement() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		return false
	}
	c.stopped = true
	c.cancel()
	return true
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop cancels the countdown. It is safe to call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.cancel()
}
