package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterStaleAfter = 10 * time.Minute
)

// limiterPool hands out one token bucket per client IP and evicts buckets
// that have not been touched within limiterStaleAfter.
type limiterPool struct {
	mu    sync.Mutex
	rps   int
	burst int
	seen  map[string]*clientLimiter
}

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(rps, burst int) *limiterPool {
	p := &limiterPool{rps: rps, burst: burst, seen: make(map[string]*clientLimiter)}
	go p.sweep()
	return p
}

func (p *limiterPool) allow(ip string) bool {
	p.mu.Lock()
	cl, ok := p.seen[ip]
	if !ok {
		cl = &clientLimiter{bucket: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.seen[ip] = cl
	}
	cl.lastSeen = time.Now()
	p.mu.Unlock()
	return cl.bucket.Allow()
}

func (p *limiterPool) sweep() {
	for {
		time.Sleep(limiterSweepEvery)
		p.mu.Lock()
		for ip, cl := range p.seen {
			if time.Since(cl.lastSeen) > limiterStaleAfter {
				delete(p.seen, ip)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)
	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
