package middleware

import (
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"webstack/application/http/dispatch"
	"webstack/application/http/semantic"
	"webstack/conf"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// minIdle is the shortest time a bucket is kept after its last request.
const minIdle = time.Minute

// RateLimit answers 429 once a remote address exceeds its token bucket.
// Buckets idle long enough to be full again are dropped, so the table only
// holds hosts seen within the idle window.
type RateLimit struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	limit rate.Limit
	burst int
	idle  time.Duration
	clock clock.Clock
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

var _ dispatch.RequestProcessor = (*RateLimit)(nil)

func NewRateLimit(cfg conf.RateLimit, clk clock.Clock) *RateLimit {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	// An empty bucket refills completely within burst/rps seconds.
	idle := minIdle
	if cfg.RPS > 0 {
		idle = max(idle, time.Duration(float64(burst)/cfg.RPS*float64(time.Second)))
	}

	return &RateLimit{
		buckets:   make(map[string]*bucket),
		lastSweep: clk.Now(),
		limit:     rate.Limit(cfg.RPS),
		burst:     burst,
		idle:      idle,
		clock:     clk,
	}
}

func (rl *RateLimit) Name() string { return "ratelimit" }

func (rl *RateLimit) ProcessRequest(r *semantic.Request) (semantic.Response, error) {
	now := rl.clock.Now()
	l := rl.get(clientKey(r.RemoteAddr()), now)

	if l.AllowN(now, 1) {
		return nil, nil
	}

	resp := semantic.NewHTTPResponse([]byte("<h1>Too Many Requests</h1>"),
		semantic.WithStatus(429), semantic.WithDefaults(r.Settings()))

	// Seconds until one token is back, rounded up.
	wait := l.ReserveN(now, 1)
	delay := wait.DelayFrom(now)
	wait.CancelAt(now)
	resp.Headers().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))

	return resp, nil
}

func (rl *RateLimit) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idle {
		rl.sweep(now)
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.limiter
}

// sweep drops buckets unused for the idle window. rl.mu must be held.
func (rl *RateLimit) sweep(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.seen) >= rl.idle {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

// tracked reports how many hosts currently have a bucket.
func (rl *RateLimit) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// clientKey drops the port so every connection of a host shares a bucket.
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
