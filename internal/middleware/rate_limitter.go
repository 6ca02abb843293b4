package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"PersonalAssistant/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

const bucketIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per caller and route group, so a UI
// polling /voice/status cannot starve /tasks.
type rateLimiter struct {
	bucket    map[string]*bucket
	rate      rate.Limit
	burstSize int
	mutex     sync.Mutex
	now       func() time.Time
	lastSweep time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*bucket),
		rate:      reqRate,
		burstSize: burstSize,
		now:       time.Now,
	}
}

func (r *rateLimiter) GetLimiterFrom(key string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) > bucketIdleTTL {
		for k, b := range r.bucket {
			if now.Sub(b.lastSeen) > bucketIdleTTL {
				delete(r.bucket, k)
			}
		}
		r.lastSweep = now
	}

	b, exist := r.bucket[key]
	if !exist {
		b = &bucket{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[key] = b
	}
	b.lastSeen = now

	return b.limiter
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.bucket)
}

// limiterKey combines the caller address with the first route segment
// below the API prefix.
func limiterKey(ip, path string) string {
	segment := strings.TrimPrefix(path, "/api/v1")
	segment = strings.TrimPrefix(segment, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	return ip + "|" + segment
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	key := limiterKey(ctx.IP(), ctx.Path())
	limiter := m.rateLimitter.GetLimiterFrom(key)

	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		m.log.WithField("key", key).Warn("Too many requests")
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(delay.Seconds())+1))
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": ErrTooManyRequests.Error(),
		})
	}

	return ctx.Next()
}
