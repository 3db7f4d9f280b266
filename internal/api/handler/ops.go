// Package handler provides HTTP handlers for the smart city API.
package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
)

// readyTimeout bounds each dependency check.
const readyTimeout = 2 * time.Second

// DependencyCheck reports whether a backing store is reachable.
type DependencyCheck func(ctx context.Context) error

// OpsConfig holds dependencies for the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Providers tracks upstream circuit breakers; nil reports no providers.
	Providers *resilience.Registry
	// Checks are run by the readiness and status endpoints, keyed by subsystem name.
	Checks map[string]DependencyCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.cfg.Version,
		BuildTime: h.cfg.BuildTime,
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - 503 until every dependency answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.subsystems(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	failed := map[string]string{}
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			failed[s.Name] = *s.Detail
		}
	}
	if len(failed) > 0 {
		health.Status = models.HealthStatusFail
		health.Failed = failed
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
// Open provider circuits degrade the service since panels fall back to sample data.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystems(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}

	if h.cfg.Providers != nil {
		for _, p := range h.cfg.Providers.Snapshot() {
			ps := providerStatus(p)
			if ps.Status != models.HealthStatusOK {
				status.SampleData = append(status.SampleData, p.Name)
				if status.Status == models.HealthStatusOK {
					status.Status = models.HealthStatusDegraded
				}
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := h.cfg.Checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func providerStatus(p resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            p.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        p.CircuitState.String(),
		ConsecutiveFailures: p.Counts.ConsecutiveFailures,
		TotalFailures:       p.Failures,
	}
	switch p.CircuitState {
	case gobreaker.StateHalfOpen:
		ps.Status = models.HealthStatusDegraded
	case gobreaker.StateOpen:
		ps.Status = models.HealthStatusFail
	}
	if !p.LastSuccessAt.IsZero() {
		ts := models.Timestamp(p.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if !p.LastFailureAt.IsZero() {
		ts := models.Timestamp(p.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}
