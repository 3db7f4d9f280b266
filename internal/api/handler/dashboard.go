package handler

import (
	"context"
	"net/http"

	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/dashboard"
)

// OverviewSource holds the overview snapshot. *dashboard.Poller satisfies this interface.
type OverviewSource interface {
	Current() (dashboard.Overview, bool)
	Refresh(ctx context.Context) dashboard.Overview
}

// DashboardHandler serves the overview snapshot.
type DashboardHandler struct {
	overview OverviewSource
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(overview OverviewSource) *DashboardHandler {
	return &DashboardHandler{
		overview: overview,
	}
}

// Overview handles GET /v1/dashboard/overview. Before the first timed refresh
// has finished the snapshot is loaded on demand.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, ok := h.overview.Current()
	if !ok {
		ov = h.overview.Refresh(r.Context())
	}
	response.JSON(w, r, http.StatusOK, ov)
}
