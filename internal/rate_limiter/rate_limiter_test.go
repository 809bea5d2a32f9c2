package ratelimiter

import (
	"testing"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"go.uber.org/zap"
)

func newTestLimiter(limit int, enabled bool) (*FixedWindowRateLimiter, *time.Time) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(config.RateLimiterConfig{
		RequestsPerTimeFrame: limit,
		TimeFrame:            time.Minute,
		Enabled:              enabled,
	}, zap.NewNop().Sugar())
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestFixedWindowAllow(t *testing.T) {
	rl, now := newTestLimiter(2, true)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("203.0.113.7"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, retryAfter := rl.Allow("203.0.113.7")
	if ok {
		t.Fatal("third request in the window should be refused")
	}
	if retryAfter != time.Minute {
		t.Errorf("retryAfter = %s, want %s", retryAfter, time.Minute)
	}

	if ok, _ := rl.Allow("198.51.100.1"); !ok {
		t.Error("another client has its own window")
	}

	*now = now.Add(time.Minute)
	if ok, _ := rl.Allow("203.0.113.7"); !ok {
		t.Error("a new window should allow requests again")
	}
}

func TestFixedWindowDisabled(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		enabled bool
	}{
		{"disabled", 1, false},
		{"zero limit", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, _ := newTestLimiter(tt.limit, tt.enabled)
			for i := 0; i < 5; i++ {
				if ok, _ := rl.Allow("203.0.113.7"); !ok {
					t.Fatalf("request %d should be allowed", i+1)
				}
			}
		})
	}
}

func TestFixedWindowEvictsExpiredWindows(t *testing.T) {
	rl, now := newTestLimiter(5, true)
	rl.Allow("a")
	rl.Allow("b")

	*now = now.Add(2 * time.Minute)
	rl.Allow("c")

	if len(rl.byKey) != 1 {
		t.Errorf("expected only the fresh window to remain, got %d", len(rl.byKey))
	}
}
