package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/news"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 100
)

// AlertSource lists and refreshes news alerts. *news.Service satisfies this interface.
type AlertSource interface {
	FetchAndStore(ctx context.Context) (news.FetchResult, error)
	Alerts(ctx context.Context, limit int) ([]news.Alert, error)
}

// AlertHandler handles the news alert endpoints.
type AlertHandler struct {
	news   AlertSource
	logger zerolog.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(source AlertSource, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		news:   source,
		logger: logger,
	}
}

// ListAlerts handles GET /v1/alerts - stored articles with severity, newest first.
// An optional severity query keeps only alerts of that severity.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAlertLimit {
			response.BadRequest(w, r, "validation error", []models.FieldError{
				{Field: "limit", Message: "must be between 1 and 100", Code: "range"},
			})
			return
		}
		limit = n
	}

	severity := news.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !severity.Valid() {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "severity", Message: "must be one of low, medium, high, unknown", Code: "oneof"},
		})
		return
	}

	alerts, err := h.news.Alerts(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list alerts")
		response.ServiceUnavailable(w, r, "alerts unavailable")
		return
	}

	out := models.Alerts{Items: make([]models.Alert, 0, len(alerts))}
	for _, a := range alerts {
		if severity != "" && a.Severity != severity {
			continue
		}
		out.Items = append(out.Items, toAlert(a))
	}
	out.Count = len(out.Items)
	response.JSON(w, r, http.StatusOK, out)
}

// RefreshAlerts handles POST /v1/alerts:refresh - fetch and store news now.
func (h *AlertHandler) RefreshAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := h.news.FetchAndStore(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("news refresh failed")
		if errors.Is(err, news.ErrAllKeywordsFailed) {
			response.BadGateway(w, r, "news provider unavailable")
			return
		}
		response.ServiceUnavailable(w, r, "alerts store unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.AlertsRefresh{
		Fetched:        result.Fetched,
		Stored:         result.Stored,
		FailedKeywords: result.Failed,
	})
}

func toAlert(a news.Alert) models.Alert {
	out := models.Alert{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		Source:      a.Source,
		Keyword:     a.Keyword,
		Severity:    string(a.Severity),
	}
	if !a.PublishedAt.IsZero() {
		ts := models.Timestamp(a.PublishedAt)
		out.PublishedAt = &ts
	}
	return out
}
