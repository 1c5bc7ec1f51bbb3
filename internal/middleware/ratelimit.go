package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a per-client rate limiter.
type RateLimiterConfig struct {
	Name            string        // label used in logs and metrics, e.g. "login"
	Rate            rate.Limit    // sustained requests per second
	Burst           int           // requests allowed at once
	CleanupInterval time.Duration // how often idle clients are forgotten
}

// LoginRateLimiterConfig allows perMinute attempts per client per minute,
// all of which may be spent at once.
func LoginRateLimiterConfig(perMinute, burst int) RateLimiterConfig {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = perMinute
	}
	return RateLimiterConfig{
		Name:            "login",
		Rate:            rate.Limit(float64(perMinute) / 60.0),
		Burst:           burst,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimitRecorder is told about every rejected request.
type RateLimitRecorder interface {
	RecordRateLimited(limiter string)
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles requests per client IP.
//
// Credential-checking endpoints are the target: without a limit, an
// attacker can try passwords as fast as bcrypt allows.
type RateLimiter struct {
	config RateLimiterConfig
	logger *slog.Logger
	rec    RateLimitRecorder

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup goroutine.
// Call Stop to end it. rec may be nil.
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger, rec RateLimitRecorder) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		logger:  logger,
		rec:     rec,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
//
// Clients are keyed by r.RemoteAddr; put chi's RealIP middleware first when
// running behind a proxy.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.limiter(key).Allow() {
			rl.logger.Warn("rate limit exceeded",
				slog.String("limiter", rl.config.Name),
				slog.String("client", key),
			)
			if rl.rec != nil {
				rl.rec.RecordRateLimited(rl.config.Name)
			}
			writeRateLimitResponse(w, rl.config.Rate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientCount returns the number of clients currently tracked.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.clients[key] = c
	}
	c.lastAccess = time.Now()
	return c.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets clients idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if now.Sub(c.lastAccess) > ttl {
			delete(rl.clients, key)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse writes a 429 whose Retry-After is the time until
// one more token is available.
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := 1
	if r > 0 {
		retryAfter = int(math.Ceil(1.0 / float64(r)))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "too many requests, try again later",
	})
}
