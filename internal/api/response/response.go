// Package response writes API responses. Every writer echoes the request ID
// in X-Request-Id so dashboard errors can be matched to server logs.
package response

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/api/models"
)

// JSON encodes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeHeader(w, r, "application/json", status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Raw writes an already encoded JSON body unchanged.
func Raw(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	writeHeader(w, r, "application/json", status)
	_, _ = w.Write(body)
}

// Text writes a plain text body.
func Text(w http.ResponseWriter, r *http.Request, status int, body string) {
	writeHeader(w, r, "text/plain; charset=utf-8", status)
	_, _ = io.WriteString(w, body)
}

// Problem writes p with the request path as its instance.
func Problem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400; errors may be nil.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Problem(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewUnauthorized(requestID(r), detail))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewNotFound(requestID(r), detail))
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewInternalError(requestID(r), detail))
}

// BadGateway writes a 502.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewBadGateway(requestID(r), detail))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewServiceUnavailable(requestID(r), detail))
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func writeHeader(w http.ResponseWriter, r *http.Request, contentType string, status int) {
	if id := requestID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
}
