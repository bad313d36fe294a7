package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Advance fires tickers
// and AfterFunc callbacks whose deadlines have passed, in order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

// NewFake returns a Fake pinned at the given start time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		f:        f,
		ch:       make(chan time.Time, 64),
		interval: d,
		next:     f.now.Add(d),
	}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{f: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward, delivering ticks and firing expired
// timers. Callbacks run on the caller's goroutine.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	// Collect everything due up to target, ordered by deadline.
	var due []func()
	for {
		var earliest time.Time
		found := false
		for _, t := range f.tickers {
			if !t.stopped && !t.next.After(target) && (!found || t.next.Before(earliest)) {
				earliest = t.next
				found = true
			}
		}
		for _, t := range f.timers {
			if !t.stopped && !t.fired && !t.deadline.After(target) && (!found || t.deadline.Before(earliest)) {
				earliest = t.deadline
				found = true
			}
		}
		if !found {
			break
		}
		f.now = earliest
		for _, t := range f.tickers {
			if !t.stopped && t.next.Equal(earliest) {
				select {
				case t.ch <- earliest:
				default:
				}
				t.next = t.next.Add(t.interval)
			}
		}
		for _, t := range f.timers {
			if !t.stopped && !t.fired && t.deadline.Equal(earliest) {
				t.fired = true
				due = append(due, t.fn)
			}
		}
	}
	f.now = target
	f.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// Jump moves the clock forward without delivering intermediate ticks,
// simulating a suspended host where scheduled callbacks never ran.
// A single tick is delivered afterward so the consumer can reconcile.
func (f *Fake) Jump(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var fire []func()
	for _, t := range f.tickers {
		if !t.stopped {
			for !t.next.After(f.now) {
				t.next = t.next.Add(t.interval)
			}
			select {
			case t.ch <- f.now:
			default:
			}
		}
	}
	sort.Slice(f.timers, func(i, j int) bool { return f.timers[i].deadline.Before(f.timers[j].deadline) })
	for _, t := range f.timers {
		if !t.stopped && !t.fired && !t.deadline.After(f.now) {
			t.fired = true
			fire = append(fire, t.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// fakeTicker and fakeTimer state is guarded by the owning Fake's mutex;
// Stop may be called from any goroutine while Advance or Jump runs.
type fakeTicker struct {
	f        *Fake
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.f.mu.Lock()
	t.stopped = true
	t.f.mu.Unlock()
}

type fakeTimer struct {
	f        *Fake
	deadline time.Time
	fn       func()
	fired    bool
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	was := !t.fired && !t.stopped
	t.stopped = true
	return was
}
