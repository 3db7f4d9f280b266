package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/syntaxsurfers/smartcity/internal/api/models"
)

// RateLimitConfig is a request budget per key and window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Budgets per route class.
var (
	// ProxyRateLimit guards the traffic proxy. Every call is a billed TomTom request.
	ProxyRateLimit = RateLimitConfig{RequestLimit: 60, WindowLength: time.Minute}

	// ExpensiveRateLimit guards geocoding and alert refresh, which fan out upstream.
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit guards panel reads, mostly served from cache.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits by client address. Run chi's RealIP first so proxied
// requests are keyed by the forwarded address.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByUser limits signed-in users by user ID and everyone else by address.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyByUserOrIP)
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Round(time.Second) / time.Second))
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the reset time; a full window is the upper bound.
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, retry after "+retryAfter+"s").
				WithInstance(r.URL.Path).
				Write(w)
		}),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}
