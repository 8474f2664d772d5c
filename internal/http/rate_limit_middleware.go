package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipRateLimiterStore holds per-IP rate limiters.
type ipRateLimiterStore struct {
	limiters sync.Map // map[string]*ipRateLimiterEntry
	rps      float64
	burst    int
}

type ipRateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// IPRateLimitMiddleware enforces a token bucket per client IP in front of the
// API. It sheds raw request volume; the anomaly monitor still decides on
// security blocking inside the gateway.
//
// Returns 429 Too Many Requests with a Retry-After header when the bucket is empty.
func IPRateLimitMiddleware(rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &ipRateLimiterStore{
		rps:   rps,
		burst: burst,
	}

	// Stale limiters are dropped every 5 minutes
	go store.cleanupStale(context.Background(), 5*time.Minute)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := store.getLimiter(clientIP)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Seconds()) + 1
			reservation.Cancel()

			logger.Debug("rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests, retry later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (s *ipRateLimiterStore) getLimiter(ip string) *rate.Limiter {
	now := time.Now()
	entry := &ipRateLimiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: now,
	}
	if existing, loaded := s.limiters.LoadOrStore(ip, entry); loaded {
		entry = existing.(*ipRateLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = now
		entry.mu.Unlock()
	}
	return entry.limiter
}

// cleanupStale removes limiters not used in the last hour.
func (s *ipRateLimiterStore) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictBefore(time.Now().Add(-1 * time.Hour))
		}
	}
}

func (s *ipRateLimiterStore) evictBefore(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*ipRateLimiterEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()

		if stale {
			s.limiters.Delete(key)
		}
		return true
	})
}
