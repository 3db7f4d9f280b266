package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
)

// TrafficQuerier forwards a metric request upstream. *traffic.Proxy satisfies this interface.
type TrafficQuerier interface {
	Query(ctx context.Context, req traffic.MetricRequest) (json.RawMessage, error)
}

// TrafficHandler handles the traffic metric proxy.
type TrafficHandler struct {
	proxy  TrafficQuerier
	logger zerolog.Logger
}

// NewTrafficHandler creates a new TrafficHandler.
func NewTrafficHandler(proxy TrafficQuerier, logger zerolog.Logger) *TrafficHandler {
	return &TrafficHandler{
		proxy:  proxy,
		logger: logger,
	}
}

// Metric handles GET /api/traffic and /v1/traffic.
// Validation failures answer 400 and upstream failures 500, both as {"error": "..."}.
// Nothing is sent upstream unless the request is valid.
func (h *TrafficHandler) Metric(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := traffic.ParseMetricRequest(q.Get("lat"), q.Get("lng"), q.Get("type"))
	if err != nil {
		writeProxyError(w, r, http.StatusBadRequest, err)
		return
	}

	body, err := h.proxy.Query(r.Context(), req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.Error().Err(err).Str("type", string(req.Type)).Msg("traffic proxy request failed")
		}
		writeProxyError(w, r, http.StatusInternalServerError, err)
		return
	}

	response.Raw(w, r, http.StatusOK, body)
}

func writeProxyError(w http.ResponseWriter, r *http.Request, status int, err error) {
	response.JSON(w, r, status, map[string]string{"error": traffic.ErrorMessage(err)})
}
