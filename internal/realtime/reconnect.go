package realtime

import (
	"math/rand"
	"sync"
	"time"
)

// stableAfter is how long a connection must live before the backoff
// counter resets. Prevents a flapping server from keeping delays short.
const stableAfter = 30 * time.Second

type reconnector struct {
	mu          sync.Mutex
	config      TransportConfig
	attempt     int
	connectedAt time.Time
}

func newReconnector(config TransportConfig) *reconnector {
	return &reconnector{config: config}
}

func (r *reconnector) markConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectedAt = time.Now()
}

func (r *reconnector) shouldReconnect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > stableAfter {
		r.attempt = 0
	}
	return r.attempt < r.config.MaxReconnectAttempts
}

// nextDelay returns exponential backoff with jitter, capped at the
// configured maximum, along with the attempt number it backs.
func (r *reconnector) nextDelay() (time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delay := r.config.ReconnectBaseDelay
	for i := 0; i < r.attempt; i++ {
		delay *= 2
		if delay >= r.config.ReconnectMaxDelay {
			delay = r.config.ReconnectMaxDelay
			break
		}
	}
	r.attempt++

	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter, r.attempt
}
