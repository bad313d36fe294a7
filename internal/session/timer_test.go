package session

import (
	"testing"
	"time"

	"github.com/excellencehub/proctor-backend/internal/clock"
)

func collectTimer(clk clock.Clock, duration time.Duration) (*Timer, chan int, chan struct{}) {
	ticks := make(chan int, 128)
	expired := make(chan struct{}, 1)
	t := NewTimer(clk,
		func(rem int) { ticks <- rem },
		func() { expired <- struct{}{} },
	)
	t.Start(duration)
	return t, ticks, expired
}

func recvTick(t *testing.T, ticks chan int) int {
	t.Helper()
	select {
	case v := <-ticks:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func TestTimerCountsDown(t *testing.T) {
	clk := clock.NewFake(time.Now())
	timer, ticks, _ := collectTimer(clk, 10*time.Second)
	defer timer.Stop()

	clk.Advance(time.Second)
	if got := recvTick(t, ticks); got != 9 {
		t.Fatalf("after 1s: got %d, want 9", got)
	}

	clk.Advance(time.Second)
	if got := recvTick(t, ticks); got != 8 {
		t.Fatalf("after 2s: got %d, want 8", got)
	}

	if got := timer.Remaining(); got != 8 {
		t.Fatalf("Remaining: got %d, want 8", got)
	}
}

func TestTimerExpires(t *testing.T) {
	clk := clock.NewFake(time.Now())
	timer, ticks, expired := collectTimer(clk, 2*time.Second)
	defer timer.Stop()

	clk.Advance(time.Second)
	recvTick(t, ticks)
	clk.Advance(time.Second)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}

	if got := recvTick(t, ticks); got != 0 {
		t.Fatalf("final tick: got %d, want 0", got)
	}
	if got := timer.Remaining(); got != 0 {
		t.Fatalf("Remaining after expiry: got %d, want 0", got)
	}
}

// A suspended host delivers no intermediate ticks. The first tick after
// waking must reconcile against the wall-clock deadline, not resume the
// old count.
func TestTimerReconcilesAfterSuspend(t *testing.T) {
	clk := clock.NewFake(time.Now())
	timer, ticks, _ := collectTimer(clk, 10*time.Minute)
	defer timer.Stop()

	clk.Jump(7 * time.Minute)

	if got := recvTick(t, ticks); got != 3*60 {
		t.Fatalf("after 7min suspend: got %d, want %d", got, 3*60)
	}
}

func TestTimerSuspendPastDeadline(t *testing.T) {
	clk := clock.NewFake(time.Now())
	timer, _, expired := collectTimer(clk, time.Minute)
	defer timer.Stop()

	clk.Jump(5 * time.Minute)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire after suspend past deadline")
	}
}

func TestTimerExpiresOnce(t *testing.T) {
	clk := clock.NewFake(time.Now())
	timer, ticks, expired := collectTimer(clk, time.Second)
	defer timer.Stop()

	clk.Advance(time.Second)
	<-expired
	recvTick(t, ticks)

	clk.Advance(5 * time.Second)

	select {
	case <-expired:
		t.Fatal("onExpire fired more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerStopSilences(t *testing.T) {
	clk := clock.NewFake(time.Now())
	timer, ticks, expired := collectTimer(clk, 2*time.Second)

	clk.Advance(time.Second)
	recvTick(t, ticks)

	timer.Stop()
	clk.Advance(10 * time.Second)

	select {
	case <-expired:
		t.Fatal("expired after Stop")
	case v := <-ticks:
		t.Fatalf("tick %d after Stop", v)
	case <-time.After(100 * time.Millisecond):
	}
}
