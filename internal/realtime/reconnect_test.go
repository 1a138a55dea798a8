package realtime

import (
	"testing"
	"time"
)

func TestReconnectorBackoff(t *testing.T) {
	cfg := TransportConfig{
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   100 * time.Millisecond,
		ReconnectMaxDelay:    time.Second,
	}
	r := newReconnector(cfg)

	var prev time.Duration
	for i := 0; i < 3; i++ {
		if !r.shouldReconnect() {
			t.Fatalf("attempt %d rejected before hitting the limit", i+1)
		}
		delay, attempt := r.nextDelay()
		if attempt != i+1 {
			t.Fatalf("attempt = %d, want %d", attempt, i+1)
		}
		if delay < prev {
			t.Fatalf("delay %v shrank below previous %v", delay, prev)
		}
		if delay > cfg.ReconnectMaxDelay+cfg.ReconnectMaxDelay/4 {
			t.Fatalf("delay %v exceeds cap plus jitter", delay)
		}
		prev = cfg.ReconnectBaseDelay // base for the monotonic check only
	}

	if r.shouldReconnect() {
		t.Fatal("limit not enforced")
	}
}

func TestReconnectorResetAfterStableConnection(t *testing.T) {
	cfg := TransportConfig{
		MaxReconnectAttempts: 2,
		ReconnectBaseDelay:   10 * time.Millisecond,
		ReconnectMaxDelay:    100 * time.Millisecond,
	}
	r := newReconnector(cfg)

	r.nextDelay()
	r.nextDelay()
	if r.shouldReconnect() {
		t.Fatal("limit not enforced")
	}

	// A connection that stayed up long enough clears the counter.
	r.markConnected()
	r.connectedAt = time.Now().Add(-time.Minute)
	if !r.shouldReconnect() {
		t.Fatal("stable connection did not reset the attempt counter")
	}
}
