package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eventeye/server/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic        RateLimitTier = "public"
	TierAuthenticated RateLimitTier = "authenticated"
	TierLogin         RateLimitTier = "login"
)

const (
	limiterTTL      = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// RateLimiter keeps one token bucket per tier and client address.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	perMinute   map[RateLimitTier]int
	trusted     []*net.IPNet
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a background sweep of idle buckets; call Stop to end it.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic:        cfg.PublicPerMinute,
			TierAuthenticated: cfg.AuthenticatedPerMinute,
			TierLogin:         cfg.LoginPer15Minutes,
		},
		trusted:     parseCIDRs(cfg.TrustedProxyCIDRs),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Limit rejects requests over the tier's budget with 429. A tier configured
// with a non-positive budget is unlimited.
func (rl *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.limiter(tier, clientKey(r, rl.trusted))
			if limiter == nil || limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(tier)))
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
}

func retryAfterSeconds(tier RateLimitTier) int {
	if tier == TierLogin {
		return 180
	}
	return 60
}

func (rl *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := rl.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	var limiter *rate.Limiter
	if tier == TierLogin {
		// limit attempts per 15 minutes, refilled evenly
		limiter = rate.NewLimiter(rate.Every(15*time.Minute/time.Duration(limit)), limit)
	} else {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	}

	rl.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(rl.limiters, key)
		}
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// clientKey returns the caller's address. Forwarding headers are honoured
// only when the direct peer is a trusted proxy.
func clientKey(r *http.Request, trusted []*net.IPNet) string {
	if r == nil {
		return ""
	}

	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trusted) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}

	return remoteIP
}

func isTrustedProxy(ip string, trusted []*net.IPNet) bool {
	if len(trusted) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range trusted {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(values))
	for _, value := range values {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(value)); err == nil {
			out = append(out, cidr)
		}
	}
	return out
}
