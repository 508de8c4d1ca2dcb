package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/pkg/httpext"
	"github.com/deepgram/chatroom/pkg/logger"
	"github.com/deepgram/chatroom/pkg/ratelimit"
)

func RateLimit(limitKey string) func(http.Handler) http.Handler {
	return RateLimitWithConfig(limitKey, config.GetRateLimitConfig(limitKey))
}

func RateLimitWithConfig(limitKey string, cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	limiter := ratelimit.NewLimiter(cfg.RPS, cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !limiter.Allow(ip) {
				logger.Warn(logger.MIDDLEWARE, "Rate limit exceeded for %s on %s", ip, limitKey)
				httpext.JsonError(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop when behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
