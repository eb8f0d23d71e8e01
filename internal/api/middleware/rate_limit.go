package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"media-artwork/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter 限流器結構
type RateLimiter struct {
	mu       sync.Mutex
	tokens   int
	capacity int
	rate     float64
	lastTime time.Time
	lastSeen time.Time
}

// NewRateLimiter 創建新的限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:   requests,
		capacity: requests,
		rate:     float64(requests) / window.Seconds(),
		lastTime: now,
		lastSeen: now,
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.lastSeen = now
	elapsed := now.Sub(rl.lastTime).Seconds()

	// 添加新令牌，只在產生整數令牌時推進時間
	newTokens := int(elapsed * rl.rate)
	if newTokens > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+newTokens)
		rl.lastTime = now
	}

	// 檢查是否有可用令牌
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}

	return false
}

// idleFor 距離最後一次請求的時間
func (rl *RateLimiter) idleFor(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return now.Sub(rl.lastSeen)
}

// limiterStore 每個客戶端 IP 一個令牌桶，閒置超過一個窗口的桶會被移除
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*RateLimiter
	requests  int
	window    time.Duration
	lastSweep time.Time
}

func newLimiterStore(requests int, window time.Duration) *limiterStore {
	return &limiterStore{
		limiters:  make(map[string]*RateLimiter),
		requests:  requests,
		window:    window,
		lastSweep: time.Now(),
	}
}

// get 取得 IP 對應的令牌桶，每個窗口最多清理一次
func (s *limiterStore) get(ip string) *RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastSweep) >= s.window {
		s.sweep(now)
		s.lastSweep = now
	}

	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = NewRateLimiter(s.requests, s.window)
		s.limiters[ip] = limiter
	}
	return limiter
}

// sweep 閒置一個窗口後令牌已補滿，移除不影響限流結果
func (s *limiterStore) sweep(now time.Time) {
	for ip, limiter := range s.limiters {
		if limiter.idleFor(now) >= s.window {
			delete(s.limiters, ip)
		}
	}
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimit 限流中間件，每個客戶端 IP 各自一個令牌桶
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	store := newLimiterStore(requests, window)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !store.get(ip).Allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       common.ErrTooManyRequests.Message,
				"code":        common.ErrTooManyRequests.Code,
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
