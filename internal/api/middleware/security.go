package middleware

import (
	"net/http"

	"github.com/syntaxsurfers/smartcity/internal/api/models"
)

// apiHeaders are sent on every response. The API only serves JSON to the
// dashboard, so nothing may frame or execute it.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders adds the API security headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range apiHeaders {
			w.Header().Set(h[0], h[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests the load balancer received over plain HTTP.
// Only X-Forwarded-Proto is checked: direct connections and local development
// carry no header and pass, as do platform checks of the liveness endpoint.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto == "" || proto == "https" || r.URL.Path == "/v1/ops/health" {
				next.ServeHTTP(w, r)
				return
			}
			models.NewProblem(models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, GetRequestID(r.Context())).
				WithDetail("the smart city API is only served over HTTPS").
				WithInstance(r.URL.Path).
				Write(w)
		})
	}
}
