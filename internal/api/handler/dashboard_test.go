package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/api/handler"
	"github.com/syntaxsurfers/smartcity/internal/dashboard"
)

type stubOverview struct {
	current   dashboard.Overview
	loaded    bool
	refreshes int
}

func (s *stubOverview) Current() (dashboard.Overview, bool) { return s.current, s.loaded }

func (s *stubOverview) Refresh(context.Context) dashboard.Overview {
	s.refreshes++
	s.current = dashboard.Overview{City: "Palghar", RefreshedAt: time.Now().UTC()}
	s.loaded = true
	return s.current
}

func TestDashboardHandler_ServesSnapshot(t *testing.T) {
	src := &stubOverview{current: dashboard.Overview{City: "Tokyo", Live: map[string]bool{"weather": true}}, loaded: true}
	h := handler.NewDashboardHandler(src)

	rec := httptest.NewRecorder()
	h.Overview(rec, httptest.NewRequest(http.MethodGet, "/v1/dashboard/overview", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var ov dashboard.Overview
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ov))
	assert.Equal(t, "Tokyo", ov.City)
	assert.Zero(t, src.refreshes)
}

func TestDashboardHandler_LoadsOnDemandBeforeFirstRefresh(t *testing.T) {
	src := &stubOverview{}
	h := handler.NewDashboardHandler(src)

	rec := httptest.NewRecorder()
	h.Overview(rec, httptest.NewRequest(http.MethodGet, "/v1/dashboard/overview", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, src.refreshes)
	assert.Contains(t, rec.Body.String(), "Palghar")
}
