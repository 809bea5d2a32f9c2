package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/util"
	"go.uber.org/zap"
)

func NewRateLimiter(cfg config.RateLimiterConfig, logger *zap.SugaredLogger) *FixedWindowRateLimiter {
	// For unit test
	if logger == nil {
		logger = util.NewLogger("development")
	}

	return NewFixedWindowLimiter(cfg, logger)
}

type windowState struct {
	start time.Time
	count int
}

// FixedWindowRateLimiter allows RequestsPerTimeFrame requests per key in every
// TimeFrame window. Windows start at the first request of a key.
type FixedWindowRateLimiter struct {
	mu     sync.Mutex
	cfg    config.RateLimiterConfig
	logger *zap.SugaredLogger
	byKey  map[string]windowState
	now    func() time.Time
}

func NewFixedWindowLimiter(cfg config.RateLimiterConfig, logger *zap.SugaredLogger) *FixedWindowRateLimiter {
	return &FixedWindowRateLimiter{
		cfg:    cfg,
		logger: logger,
		byKey:  map[string]windowState{},
		now:    time.Now,
	}
}

func (rl *FixedWindowRateLimiter) Enabled() bool {
	return rl != nil && rl.cfg.Enabled && rl.cfg.RequestsPerTimeFrame > 0
}

// Allow reports whether key may make another request, and if not how long until
// its window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	if !rl.Enabled() {
		return true, 0
	}

	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cur := rl.byKey[key]
	if cur.start.IsZero() || now.Sub(cur.start) >= rl.cfg.TimeFrame {
		rl.byKey[key] = windowState{start: now, count: 1}
		rl.evictExpired(now)
		return true, 0
	}

	if cur.count >= rl.cfg.RequestsPerTimeFrame {
		retryAfter := rl.cfg.TimeFrame - now.Sub(cur.start)
		rl.logger.Debugf("Rate limit exceeded for %s, retry after %s", key, retryAfter)
		return false, retryAfter
	}

	cur.count++
	rl.byKey[key] = cur
	return true, 0
}

// evictExpired drops windows that ended so the map does not grow with every client seen.
func (rl *FixedWindowRateLimiter) evictExpired(now time.Time) {
	for k, w := range rl.byKey {
		if now.Sub(w.start) >= rl.cfg.TimeFrame {
			delete(rl.byKey, k)
		}
	}
}
