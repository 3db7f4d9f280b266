package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/api/response"
)

const testRequestID = "req_response_test"

func newRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, http.NoBody)
	return req.WithContext(middleware.WithRequestID(req.Context(), testRequestID))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, newRequest(http.MethodGet, "/v1/search"), http.StatusOK, models.SearchResult{Query: "Tokyo", City: "tokyo", Found: true})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, testRequestID, rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"query":"Tokyo","city":"tokyo","found":true}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, nil)

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len())
}

func TestRaw_WritesBodyUnchanged(t *testing.T) {
	body := []byte(`{"flowSegmentData":{"currentSpeed":42}}`)

	rec := httptest.NewRecorder()
	response.Raw(rec, newRequest(http.MethodGet, "/api/traffic"), http.StatusOK, body)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, body, rec.Body.Bytes())
}

func TestText(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Text(rec, newRequest(http.MethodPost, "/api/webhook/clerk"), http.StatusBadRequest, "Error occured")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Error occured", rec.Body.String())
	assert.Equal(t, testRequestID, rec.Header().Get("X-Request-Id"))
}

func TestBadRequest_CarriesFieldErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	response.BadRequest(rec, newRequest(http.MethodGet, "/v1/panels/traffic"), "invalid location", []models.FieldError{
		{Field: "lat", Message: "must be between -90 and 90", Code: "range"},
	})

	p := decodeProblem(t, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, testRequestID, p.TraceID)
	assert.Equal(t, "/v1/panels/traffic", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "lat", p.Errors[0].Field)
}

func TestProblemWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request, string)
		status int
		typ    string
	}{
		{"unauthorized", response.Unauthorized, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"not found", response.NotFound, http.StatusNotFound, models.ProblemTypeNotFound},
		{"internal", response.InternalError, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"bad gateway", response.BadGateway, http.StatusBadGateway, models.ProblemTypeBadGateway},
		{"unavailable", response.ServiceUnavailable, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, newRequest(http.MethodGet, "/v1/me"), "detail")

			p := decodeProblem(t, rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, "detail", p.Detail)
			assert.Equal(t, "/v1/me", p.Instance)
			assert.Equal(t, testRequestID, p.TraceID)
		})
	}
}
