package api

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"venuebook/internal/metrics"
)

// tokenBucket refills one token every interval_ms up to capacity and takes
// one per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RateLimiter limits requests per client. With a Redis client the bucket is
// shared across instances; when Redis is absent or failing an in-process
// limiter takes over.
type RateLimiter struct {
	rdb      *redis.Client
	rps      float64
	burst    int
	interval time.Duration
	ttl      time.Duration
	prefix   string
	trusted  []*net.IPNet
	now      func() time.Time
	logger   zerolog.Logger

	mu        sync.Mutex
	local     map[string]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(rdb *redis.Client, rps float64, burst int, logger *zerolog.Logger) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	return &RateLimiter{
		rdb:      rdb,
		rps:      rps,
		burst:    burst,
		interval: interval,
		ttl:      time.Duration(burst)*interval + time.Minute,
		prefix:   "venuebook:rl",
		now:      time.Now,
		logger:   logger.With().Str("component", "ratelimit").Logger(),
		local:    make(map[string]*localBucket),
	}
}

// TrustProxies makes X-Forwarded-For count for requests arriving from the
// given addresses or CIDR ranges. Without it the header is ignored.
func (l *RateLimiter) TrustProxies(cidrs ...string) error {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "/") {
			ip := net.ParseIP(c)
			if ip == nil {
				return fmt.Errorf("trusted proxy %q: invalid address", c)
			}
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			c = fmt.Sprintf("%s/%d", ip, bits)
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		nets = append(nets, n)
	}
	l.trusted = nets
	return nil
}

// Allow takes one token for key.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.rdb != nil {
		allowed, retry, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed, retry
		}
		l.logger.Warn().Err(err).Str("key", key).Msg("redis limiter failed, using local bucket")
	}
	return l.allowLocal(key)
}

func (l *RateLimiter) allowRedis(ctx context.Context, key string) (bool, time.Duration, error) {
	vals, err := tokenBucket.Run(ctx, l.rdb, []string{l.prefix + ":" + key},
		l.now().UnixMilli(),
		l.burst,
		l.interval.Milliseconds(),
		int64(l.ttl/time.Second),
	).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(vals) != 3 {
		return false, 0, fmt.Errorf("unexpected limiter result %v", vals)
	}
	return vals[0] == 1, time.Duration(vals[2]) * time.Millisecond, nil
}

// allowLocal keeps one limiter per key. Buckets idle for longer than ttl are
// full again, so dropping them loses nothing.
func (l *RateLimiter) allowLocal(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.ttl {
		for k, b := range l.local {
			if now.Sub(b.seen) >= l.ttl {
				delete(l.local, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.local[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.local[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	if b.lim.AllowN(now, 1) {
		return true, 0
	}
	return false, l.interval
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retry := l.Allow(r.Context(), l.clientKey(r))
		if !allowed {
			metrics.IncRateLimited()
			secs := int(math.Ceil(retry.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by address. X-Forwarded-For is read only when
// the direct peer is a trusted proxy; the right-most untrusted hop wins.
func (l *RateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" || !l.isTrusted(host) {
		return "ip:" + host
	}

	hops := strings.Split(fwd, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		host = hop
		if !l.isTrusted(hop) {
			break
		}
	}
	return "ip:" + host
}

func (l *RateLimiter) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
