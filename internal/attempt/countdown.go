package attempt

import (
	"fmt"
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers; tests swap in a manual one.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

func (t realTicker) C() <-chan time.Time { return t.t.C }
func (t realTicker) Stop() { t.t.Stop() }

// RealClock ticks on wall time.
func RealClock() Clock { return realClock{} }

// Countdown is a one-second repeating task that decrements the remaining time
// and fires onExpire exactly once when it reaches zero.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	expired   bool
	onTick    func(remaining int)
	onExpire  func()

	stopOnce sync.Once
	stop     chan struct{}
}

func NewCountdown(totalSeconds int, onTick func(remaining int), onExpire func()) *Countdown {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return &Countdown{
		remaining: totalSeconds,
		onTick:    onTick,
		onExpire:  onExpire,
		stop:      make(chan struct{}),
	}
}

// Start runs the countdown on the clock until it expires or Stop is called.
func (c *Countdown) Start(clock Clock) {
	ticker := clock.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C():
				if c.Tick() {
					return
				}
			}
		}
	}()
}

// Tick advances the countdown by one second. It reports whether this tick
// expired the timer. Ticks after Stop or expiry do nothing.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.stopped || c.expired {
		c.mu.Unlock()
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	expired := remaining == 0
	if expired {
		c.expired = true
	}
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
	if expired {
		c.Stop()
		if c.onExpire != nil {
			c.onExpire()
		}
	}
	return expired
}

// Stop cancels the task. Safe to call more than once and from the hooks.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
