package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tajious/medsync/internal/config"
	"github.com/tajious/medsync/internal/logger"
)

var errRateLimited = errors.New("rate limit exceeded")

// RateLimitStore counts hits per key in fixed windows. Hit checks the count
// and records the hit in one atomic step, and reports false once the key has
// used up limit.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// hitScript returns 1 when the hit was recorded and 0 when the key is at its
// limit. The expiry is set by the first hit so the window never slides.
var hitScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
	return 0
end
if redis.call("INCR", KEYS[1]) == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// RedisRateLimitStore shares counters between service instances.
type RedisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	recorded, err := hitScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return recorded == 1, nil
}

// MemoryRateLimitStore keeps counters for a single instance.
type MemoryRateLimitStore struct {
	mu        sync.Mutex
	windows   map[string]rateWindow
	lastSweep time.Time
	now       func() time.Time
}

type rateWindow struct {
	hits    int
	resetAt time.Time
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		windows: make(map[string]rateWindow),
		now:     time.Now,
	}
}

func (s *MemoryRateLimitStore) Hit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now, window)

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = rateWindow{resetAt: now.Add(window)}
	}
	if w.hits >= limit {
		return false, nil
	}
	w.hits++
	s.windows[key] = w
	return true, nil
}

// sweep drops finished windows, at most once per window length.
func (s *MemoryRateLimitStore) sweep(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}

type RateLimiter struct {
	store RateLimitStore
	cfg   config.RateLimitConfig
	log   *logger.Logger
}

func NewRateLimiter(store RateLimitStore, cfg config.RateLimitConfig, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.IdentifierLimit <= 0 {
		cfg.IdentifierLimit = cfg.Limit
	}
	return &RateLimiter{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// RateLimit throttles auth submissions per client IP and, with the tighter
// IdentifierLimit, per identifier or email named in the body.
func (r *RateLimiter) RateLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.cfg.Enabled {
			return c.Next()
		}

		ip := c.IP()
		if ip == "" {
			ip = c.Context().RemoteIP().String()
		}

		ipKey := fmt.Sprintf("rate_limit:ip:%s", ip)
		if err := r.checkRateLimit(c.UserContext(), ipKey, r.cfg.Limit); err != nil {
			return r.reject(c, err, "Too many requests from this IP")
		}

		if identifier := submittedIdentifier(c.Body()); identifier != "" {
			userKey := fmt.Sprintf("rate_limit:identifier:%s", identifier)
			if err := r.checkRateLimit(c.UserContext(), userKey, r.cfg.IdentifierLimit); err != nil {
				return r.reject(c, err, "Too many attempts for this account")
			}
		}

		return c.Next()
	}
}

func (r *RateLimiter) reject(c *fiber.Ctx, err error, message string) error {
	if !errors.Is(err, errRateLimited) {
		r.log.Error(c.UserContext(), "rate_limit.store_failed", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Rate limiter unavailable",
		})
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": message,
	})
}

func (r *RateLimiter) checkRateLimit(ctx context.Context, key string, limit int) error {
	allowed, err := r.store.Hit(ctx, key, limit, r.cfg.Window)
	if err != nil {
		return err
	}
	if !allowed {
		return errRateLimited
	}
	return nil
}

// submittedIdentifier returns a digest of the identifier or email in a JSON
// body, so raw identifiers never become store keys.
func submittedIdentifier(body []byte) string {
	var form struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
	}
	if len(body) == 0 || json.Unmarshal(body, &form) != nil {
		return ""
	}
	id := strings.ToLower(strings.TrimSpace(form.Identifier))
	if id == "" {
		id = strings.ToLower(strings.TrimSpace(form.Email))
	}
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}
