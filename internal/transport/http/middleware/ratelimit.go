package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"walletnotify/internal/httputil"
	"walletnotify/internal/model"
)

const (
	// idleVisitorTTL is how long an unused per-client limiter is kept.
	idleVisitorTTL = 10 * time.Minute

	// sweepInterval is the minimum gap between idle-visitor sweeps.
	sweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP. The key is the
// connection's RemoteAddr, so it only honours forwarding headers when the
// router rewrites RemoteAddr behind a trusted proxy.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	limit     rate.Limit
	burst     int
	window    time.Duration
	now       func() time.Time
}

// NewRateLimiter allows requests per window for each client, with the full
// allowance available as a burst.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    requests,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweep(now)
	}
	return v.limiter
}

// sweep drops clients that have gone quiet. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > idleVisitorTTL {
			delete(rl.visitors, k)
		}
	}
	rl.lastSweep = now
}

// Handler returns the middleware. Rejected requests get 429 with Retry-After.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(clientIP(r)).AllowN(rl.now(), 1) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			httputil.WriteError(w, http.StatusTooManyRequests, model.CodeRateLimited, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
