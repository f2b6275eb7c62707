package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL         = time.Hour
	limiterCleanupInterval = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters keeps one token bucket per client IP.
type clientLimiters struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientLimiter
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	if burst <= 0 {
		burst = 1
	}
	cl := &clientLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go cl.cleanupLoop()
	return cl
}

func (cl *clientLimiters) allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	c, ok := cl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (cl *clientLimiters) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cl.cleanup()
		case <-cl.stop:
			return
		}
	}
}

func (cl *clientLimiters) cleanup() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	now := cl.now()
	for key, c := range cl.clients {
		if now.Sub(c.lastSeen) > limiterIdleTTL {
			delete(cl.clients, key)
		}
	}
}

func (cl *clientLimiters) close() {
	cl.stopOnce.Do(func() { close(cl.stop) })
}

func (cl *clientLimiters) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cl.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the peer IP, or the forwarded IP when RealIP is enabled.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
