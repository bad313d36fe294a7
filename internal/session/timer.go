package session

import (
	"sync"
	"time"

	"github.com/excellencehub/proctor-backend/internal/clock"
)

// Timer is the per-session countdown. It ticks once per second but
// always recomputes remaining time against the wall-clock deadline, so
// a backgrounded host (device sleep, missed ticks) never earns unearned
// time. Pausing is not supported; proctored time cannot be paused.
type Timer struct {
	clk      clock.Clock
	onTick   func(remainingSeconds int)
	onExpire func()

	mu       sync.Mutex
	deadline time.Time
	ticker   clock.Ticker
	stop     chan struct{}
	running  bool
}

// NewTimer creates a countdown of the given duration. onExpire fires
// exactly once when the deadline passes.
func NewTimer(clk clock.Clock, onTick func(int), onExpire func()) *Timer {
	return &Timer{clk: clk, onTick: onTick, onExpire: onExpire}
}

// Start begins the countdown.
func (t *Timer) Start(duration time.Duration) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.deadline = t.clk.Now().Add(duration)
	t.ticker = t.clk.NewTicker(time.Second)
	t.stop = make(chan struct{})
	t.mu.Unlock()

	go t.run()
}

// Stop halts ticking. Idempotent.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if !t.running {
		return
	}
	t.running = false
	t.ticker.Stop()
	close(t.stop)
}

// Remaining returns whole seconds left, never negative.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rem := t.deadline.Sub(t.clk.Now())
	if rem < 0 {
		rem = 0
	}
	return int(rem / time.Second)
}

func (t *Timer) run() {
	for {
		t.mu.Lock()
		stop := t.stop
		c := t.ticker.C()
		t.mu.Unlock()

		select {
		case <-stop:
			return
		case <-c:
			rem := t.deadline.Sub(t.clk.Now())
			if rem <= 0 {
				t.mu.Lock()
				t.stopLocked()
				t.mu.Unlock()
				if t.onTick != nil {
					t.onTick(0)
				}
				if t.onExpire != nil {
					t.onExpire()
				}
				return
			}
			if t.onTick != nil {
				t.onTick(int(rem / time.Second))
			}
		}
	}
}
