package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/api/handler"
	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/news"
)

type stubNews struct {
	alerts    []news.Alert
	listErr   error
	limit     int
	result    news.FetchResult
	fetchErr  error
	refreshed bool
}

func (s *stubNews) FetchAndStore(context.Context) (news.FetchResult, error) {
	s.refreshed = true
	return s.result, s.fetchErr
}

func (s *stubNews) Alerts(_ context.Context, limit int) ([]news.Alert, error) {
	s.limit = limit
	return s.alerts, s.listErr
}

func sampleAlerts() []news.Alert {
	published := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	return []news.Alert{
		{Article: news.Article{ID: "a1", Title: "Flood warning", Keyword: "flood", PublishedAt: published}, Severity: news.SeverityHigh},
		{Article: news.Article{ID: "a2", Title: "Road works", Keyword: "traffic"}, Severity: news.SeverityLow},
	}
}

func TestAlertHandler_ListAlerts(t *testing.T) {
	src := &stubNews{alerts: sampleAlerts()}
	h := handler.NewAlertHandler(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListAlerts(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, src.limit)

	var out models.Alerts
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "high", out.Items[0].Severity)
	require.NotNil(t, out.Items[0].PublishedAt)
	assert.Nil(t, out.Items[1].PublishedAt)
}

func TestAlertHandler_ListAlerts_SeverityFilter(t *testing.T) {
	h := handler.NewAlertHandler(&stubNews{alerts: sampleAlerts()}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListAlerts(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts?severity=low&limit=5", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var out models.Alerts
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "a2", out.Items[0].ID)
}

func TestAlertHandler_ListAlerts_BadQuery(t *testing.T) {
	h := handler.NewAlertHandler(&stubNews{}, zerolog.Nop())

	for _, q := range []string{"limit=0", "limit=101", "limit=ten", "severity=critical"} {
		t.Run(q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ListAlerts(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts?"+q, http.NoBody))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAlertHandler_ListAlerts_StoreFailure(t *testing.T) {
	h := handler.NewAlertHandler(&stubNews{listErr: errors.New("down")}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListAlerts(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAlertHandler_RefreshAlerts(t *testing.T) {
	src := &stubNews{result: news.FetchResult{Fetched: 5, Stored: 3, Failed: []string{"flood"}}}
	h := handler.NewAlertHandler(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.RefreshAlerts(rec, httptest.NewRequest(http.MethodPost, "/v1/alerts:refresh", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, src.refreshed)
	assert.JSONEq(t, `{"fetched":5,"stored":3,"failedKeywords":["flood"]}`, rec.Body.String())
}

func TestAlertHandler_RefreshAlerts_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "provider down", err: news.ErrAllKeywordsFailed, want: http.StatusBadGateway},
		{name: "store down", err: errors.New("store articles: down"), want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewAlertHandler(&stubNews{fetchErr: tt.err}, zerolog.Nop())
			rec := httptest.NewRecorder()
			h.RefreshAlerts(rec, httptest.NewRequest(http.MethodPost, "/v1/alerts:refresh", http.NoBody))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
