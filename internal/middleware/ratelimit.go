package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter 每个用户一个令牌桶，限制写操作频率
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[uint64]*visitor
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter rps<=0 时不限流
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[uint64]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow 消耗 uid 的一个令牌
func (l *RateLimiter) Allow(uid uint64) bool {
	if l.rps <= 0 {
		return true
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.limiters[uid]
	if !ok {
		l.evict(now)
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[uid] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// evict 新用户进来时顺带清理长时间不活跃的桶，调用方持有锁
func (l *RateLimiter) evict(now time.Time) {
	for uid, v := range l.limiters {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.limiters, uid)
		}
	}
}

// Middleware 需放在 AuthMiddleware 之后
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid != 0 && !l.Allow(uid) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
			return
		}
		c.Next()
	}
}
