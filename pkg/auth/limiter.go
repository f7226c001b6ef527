package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 25
	defaultBurst = 50

	// entries idle this long are dropped on the next sweep; keys are
	// client IPs when no token is configured, and a UI reconnecting from
	// rotating source addresses would otherwise grow the map for the
	// lifetime of the daemon
	idleAfter  = 10 * time.Minute
	sweepAbove = 64
)

type clientEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimits hands out one token bucket per caller key.
type clientLimits struct {
	rps   rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*clientEntry
}

func newClientLimits(cfg SecConfig) *clientLimits {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &clientLimits{
		rps:   rate.Limit(rps),
		burst: burst,
		m:     make(map[string]*clientEntry),
	}
}

func (c *clientLimits) allow(key string) bool {
	now := time.Now()

	c.mu.Lock()
	e, ok := c.m[key]
	if !ok {
		if len(c.m) >= sweepAbove {
			c.sweepLocked(now)
		}
		e = &clientEntry{lim: rate.NewLimiter(c.rps, c.burst)}
		c.m[key] = e
	}
	e.seen = now
	c.mu.Unlock()

	return e.lim.Allow()
}

func (c *clientLimits) sweepLocked(now time.Time) {
	for k, e := range c.m {
		if now.Sub(e.seen) > idleAfter {
			delete(c.m, k)
		}
	}
}
