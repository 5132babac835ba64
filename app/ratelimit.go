package parley

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/putto11262002/parley/pkg/router"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client address and route.
// Buckets idle for longer than ttl are evicted by Run.
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	ttl     time.Duration
}

func NewClientRateLimiter(rps float64, burst int, ttl time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
	}
}

func (l *ClientRateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *ClientRateLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.ttl {
			delete(l.clients, k)
		}
	}
}

// Run evicts idle buckets every 30 seconds until ctx is done.
func (l *ClientRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *ClientRateLimiter) Middleware() router.Middleware {
	limited := router.NewJsonError(http.StatusTooManyRequests, "too many requests")
	return func(next http.Handler) router.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			if l.limit > 0 && !l.allow(clientIP(r.RemoteAddr)+"|"+r.URL.Path, time.Now()) {
				return limited
			}
			next.ServeHTTP(w, r)
			return nil
		}
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
