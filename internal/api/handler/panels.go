package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/energy"
	"github.com/syntaxsurfers/smartcity/internal/geocode"
	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
	"github.com/syntaxsurfers/smartcity/internal/water"
	"github.com/syntaxsurfers/smartcity/internal/weather"
)

// WeatherPanels loads the weather and air-quality panels. *weather.Service satisfies this interface.
type WeatherPanels interface {
	Forecast(ctx context.Context, city string) panel.Result[weather.Report]
	AirQuality(ctx context.Context, city string) panel.Result[weather.AirQuality]
}

// EnergyPanel loads the energy panel. *energy.Service satisfies this interface.
type EnergyPanel interface {
	Load(ctx context.Context, respondent string) panel.Result[energy.Report]
}

// WaterPanel loads the water panel. *water.Service satisfies this interface.
type WaterPanel interface {
	Load(ctx context.Context, site string) panel.Result[water.Report]
}

// TrafficInsights loads the traffic insights panel. *traffic.InsightsService satisfies this interface.
type TrafficInsights interface {
	Insights(ctx context.Context, lat, lng float64) panel.Result[traffic.Insights]
}

// Geocoder resolves free text to coordinates. *geocode.Client satisfies this interface.
type Geocoder interface {
	Lookup(ctx context.Context, address string) (*geocode.Location, error)
}

// PlaceResolver returns a user's preferred place. *user.Service satisfies this interface.
type PlaceResolver interface {
	PreferredPlace(ctx context.Context, userID string) (string, error)
}

// PanelHandlerConfig holds dependencies for the panel endpoints.
type PanelHandlerConfig struct {
	Weather  WeatherPanels
	Energy   EnergyPanel
	Water    WaterPanel
	Traffic  TrafficInsights
	Geocoder Geocoder
	Places   PlaceResolver

	// DefaultLatitude and DefaultLongitude locate the traffic panel when the
	// request names no location.
	DefaultLatitude  float64
	DefaultLongitude float64

	Logger zerolog.Logger
}

// PanelHandler serves the dashboard panels. Every panel answers 200: when the
// upstream fails the body carries sample data and a warning.
type PanelHandler struct {
	cfg PanelHandlerConfig
}

// NewPanelHandler creates a new PanelHandler.
func NewPanelHandler(cfg PanelHandlerConfig) *PanelHandler {
	return &PanelHandler{cfg: cfg}
}

// Weather handles GET /v1/panels/weather.
func (h *PanelHandler) Weather(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.cfg.Weather.Forecast(r.Context(), h.city(r)))
}

// AirQuality handles GET /v1/panels/air-quality.
func (h *PanelHandler) AirQuality(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.cfg.Weather.AirQuality(r.Context(), h.city(r)))
}

// Energy handles GET /v1/panels/energy.
func (h *PanelHandler) Energy(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.cfg.Energy.Load(r.Context(), r.URL.Query().Get("q")))
}

// Water handles GET /v1/panels/water.
func (h *PanelHandler) Water(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.cfg.Water.Load(r.Context(), r.URL.Query().Get("q")))
}

// Traffic handles GET /v1/panels/traffic. The location comes from lat/lng, or
// from geocoding q, or from the configured default.
func (h *PanelHandler) Traffic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lng := h.cfg.DefaultLatitude, h.cfg.DefaultLongitude

	switch {
	case strings.TrimSpace(q.Get("q")) != "":
		if h.cfg.Geocoder == nil {
			response.ServiceUnavailable(w, r, "geocoding is not configured")
			return
		}
		loc, err := h.cfg.Geocoder.Lookup(r.Context(), q.Get("q"))
		if err != nil {
			writeGeocodeError(w, r, err)
			return
		}
		lat, lng = loc.Latitude, loc.Longitude

	case q.Get("lat") != "" || q.Get("lng") != "":
		var fieldErrors []models.FieldError
		var err error
		if lat, err = parseCoordinate(q.Get("lat"), 90); err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "must be a number between -90 and 90", Code: "invalid"})
		}
		if lng, err = parseCoordinate(q.Get("lng"), 180); err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "lng", Message: "must be a number between -180 and 180", Code: "invalid"})
		}
		if len(fieldErrors) > 0 {
			response.BadRequest(w, r, "invalid coordinates", fieldErrors)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, h.cfg.Traffic.Insights(r.Context(), lat, lng))
}

// city picks the weather city: the query, else the signed-in user's place.
// An empty result lets the weather service apply its default.
func (h *PanelHandler) city(r *http.Request) string {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		return q
	}
	userID := middleware.GetUserID(r.Context())
	if userID == "" || h.cfg.Places == nil {
		return ""
	}
	place, err := h.cfg.Places.PreferredPlace(r.Context(), userID)
	if err != nil {
		h.cfg.Logger.Warn().Err(err).Str("user_id", userID).Msg("failed to read preferred place")
		return ""
	}
	return place
}

var errCoordinate = errors.New("invalid coordinate")

func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < -limit || v > limit {
		return 0, errCoordinate
	}
	return v, nil
}

func writeGeocodeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geocode.ErrEmptyQuery):
		response.BadRequest(w, r, "q is required", []models.FieldError{
			{Field: "q", Message: "must not be empty", Code: "required"},
		})
	case errors.Is(err, geocode.ErrNotFound):
		response.NotFound(w, r, "location not found")
	default:
		response.BadGateway(w, r, "location lookup failed")
	}
}
