package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/syntaxsurfers/smartcity/internal/api/handler"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
)

type stubProxy struct {
	calls []traffic.MetricRequest
	body  json.RawMessage
	err   error
}

func (s *stubProxy) Query(_ context.Context, req traffic.MetricRequest) (json.RawMessage, error) {
	s.calls = append(s.calls, req)
	return s.body, s.err
}

func TestTrafficHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "no parameters", query: "", want: `{"error":"Missing parameters"}`},
		{name: "missing type", query: "lat=19&lng=72", want: `{"error":"Missing parameters"}`},
		{name: "unknown type", query: "lat=19&lng=72&type=bogus", want: `{"error":"Invalid type parameter"}`},
		{name: "bad coordinates", query: "lat=north&lng=72&type=speed", want: `{"error":"Invalid coordinates"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := &stubProxy{}
			h := handler.NewTrafficHandler(proxy, zerolog.Nop())

			req := httptest.NewRequest(http.MethodGet, "/api/traffic?"+tt.query, http.NoBody)
			rec := httptest.NewRecorder()
			h.Metric(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.Empty(t, proxy.calls, "no upstream call for invalid input")
		})
	}
}

func TestTrafficHandler_PassesBodyThrough(t *testing.T) {
	proxy := &stubProxy{body: json.RawMessage(`{"averageSpeed":42}`)}
	h := handler.NewTrafficHandler(proxy, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/traffic?lat=19.38&lng=72.83&type=average-speed", http.NoBody)
	rec := httptest.NewRecorder()
	h.Metric(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"averageSpeed":42}`, rec.Body.String())
	if assert.Len(t, proxy.calls, 1) {
		assert.Equal(t, traffic.MetricRequest{Latitude: 19.38, Longitude: 72.83, Type: traffic.AverageSpeed}, proxy.calls[0])
	}
}

func TestTrafficHandler_UpstreamFailure(t *testing.T) {
	proxy := &stubProxy{err: errors.Join(traffic.ErrUpstreamFetch, errors.New("connection reset"))}
	h := handler.NewTrafficHandler(proxy, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/traffic?lat=1&lng=2&type=speed", http.NoBody)
	rec := httptest.NewRecorder()
	h.Metric(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch data"}`, rec.Body.String())
	assert.Len(t, proxy.calls, 1)
}
