package transport

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// peerLimiter applies a token bucket per peer and periodically evicts idle
// entries. A nil *peerLimiter allows everything.
type peerLimiter struct {
	limit  rate.Limit
	burst  int
	mu     sync.Mutex
	byPeer map[string]*limiterEntry
	hits   uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newPeerLimiter returns nil when rps is not positive, disabling limiting.
func newPeerLimiter(rps float64, burst int) *peerLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &peerLimiter{
		limit:  rate.Limit(rps),
		burst:  burst,
		byPeer: make(map[string]*limiterEntry),
	}
}

// Allow reports whether the peer may issue one more request at now.
func (l *peerLimiter) Allow(peer string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byPeer[peer]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byPeer[peer] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-limiterIdleTTL)
		for k, v := range l.byPeer {
			if v.lastSeen.Before(cutoff) {
				delete(l.byPeer, k)
			}
		}
	}
	return allowed
}
