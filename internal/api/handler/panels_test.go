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
	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/energy"
	"github.com/syntaxsurfers/smartcity/internal/geocode"
	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
	"github.com/syntaxsurfers/smartcity/internal/water"
	"github.com/syntaxsurfers/smartcity/internal/weather"
)

type stubWeather struct {
	cities []string
}

func (s *stubWeather) Forecast(_ context.Context, city string) panel.Result[weather.Report] {
	s.cities = append(s.cities, city)
	return panel.Result[weather.Report]{Data: weather.Report{City: city}, Live: true}
}

func (s *stubWeather) AirQuality(_ context.Context, city string) panel.Result[weather.AirQuality] {
	s.cities = append(s.cities, city)
	return panel.Result[weather.AirQuality]{
		Data:    weather.AirQuality{City: city, Index: 42, Label: weather.AQILabel(42)},
		Warning: "sample",
	}
}

type stubEnergy struct{ respondent string }

func (s *stubEnergy) Load(_ context.Context, respondent string) panel.Result[energy.Report] {
	s.respondent = respondent
	return panel.Result[energy.Report]{Data: energy.Report{Respondent: "CISO"}, Live: true}
}

type stubWater struct{ site string }

func (s *stubWater) Load(_ context.Context, site string) panel.Result[water.Report] {
	s.site = site
	return panel.Result[water.Report]{
		Data:    water.Report{Site: water.DefaultSite},
		Warning: panel.DefaultWarning,
	}
}

type stubInsights struct {
	lat, lng float64
	called   bool
}

func (s *stubInsights) Insights(_ context.Context, lat, lng float64) panel.Result[traffic.Insights] {
	s.lat, s.lng, s.called = lat, lng, true
	return panel.Result[traffic.Insights]{Data: traffic.Insights{Latitude: lat, Longitude: lng}, Live: true}
}

type stubGeocoder struct {
	loc *geocode.Location
	err error
}

func (s *stubGeocoder) Lookup(_ context.Context, address string) (*geocode.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	loc := *s.loc
	loc.Query = address
	return &loc, nil
}

type stubPlaces struct {
	place string
	err   error
}

func (s stubPlaces) PreferredPlace(context.Context, string) (string, error) {
	return s.place, s.err
}

func newPanelHandler(cfg handler.PanelHandlerConfig) *handler.PanelHandler {
	if cfg.Weather == nil {
		cfg.Weather = &stubWeather{}
	}
	if cfg.Energy == nil {
		cfg.Energy = &stubEnergy{}
	}
	if cfg.Water == nil {
		cfg.Water = &stubWater{}
	}
	if cfg.Traffic == nil {
		cfg.Traffic = &stubInsights{}
	}
	cfg.Logger = zerolog.Nop()
	return handler.NewPanelHandler(cfg)
}

func decodeResult[T any](t *testing.T, rec *httptest.ResponseRecorder) panel.Result[T] {
	t.Helper()
	var res panel.Result[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestPanelHandler_WeatherCity(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		userID string
		places handler.PlaceResolver
		want   string
	}{
		{name: "query wins", query: "?q=Tokyo", userID: "user_1", places: stubPlaces{place: "Paris"}, want: "Tokyo"},
		{name: "preferred place", userID: "user_1", places: stubPlaces{place: "Paris"}, want: "Paris"},
		{name: "anonymous uses service default", places: stubPlaces{place: "Paris"}, want: ""},
		{name: "store failure uses service default", userID: "user_1", places: stubPlaces{err: errors.New("down")}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &stubWeather{}
			h := newPanelHandler(handler.PanelHandlerConfig{Weather: w, Places: tt.places})

			req := httptest.NewRequest(http.MethodGet, "/v1/panels/weather"+tt.query, http.NoBody)
			if tt.userID != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), tt.userID))
			}
			rec := httptest.NewRecorder()
			h.Weather(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tt.want}, w.cities)
			res := decodeResult[weather.Report](t, rec)
			assert.True(t, res.Live)
		})
	}
}

func TestPanelHandler_FallbackIsStillOK(t *testing.T) {
	h := newPanelHandler(handler.PanelHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/panels/air-quality?q=London", http.NoBody)
	rec := httptest.NewRecorder()
	h.AirQuality(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[weather.AirQuality](t, rec)
	assert.False(t, res.Live)
	assert.Equal(t, "sample", res.Warning)
	assert.Equal(t, "Good", res.Data.Label)
}

func TestPanelHandler_EnergyAndWaterForwardQuery(t *testing.T) {
	e := &stubEnergy{}
	wt := &stubWater{}
	h := newPanelHandler(handler.PanelHandlerConfig{Energy: e, Water: wt})

	rec := httptest.NewRecorder()
	h.Energy(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/energy?q=ERCO", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ERCO", e.respondent)

	rec = httptest.NewRecorder()
	h.Water(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/water", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, wt.site)
	res := decodeResult[water.Report](t, rec)
	assert.Equal(t, panel.DefaultWarning, res.Warning)
}

func TestPanelHandler_TrafficLocation(t *testing.T) {
	geo := &stubGeocoder{loc: &geocode.Location{Latitude: 51.5, Longitude: -0.12}}

	tests := []struct {
		name    string
		query   string
		wantLat float64
		wantLng float64
	}{
		{name: "default location", query: "", wantLat: 19.38, wantLng: 72.83},
		{name: "coordinates", query: "?lat=40.7&lng=-74", wantLat: 40.7, wantLng: -74},
		{name: "geocoded", query: "?q=London", wantLat: 51.5, wantLng: -0.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := &stubInsights{}
			h := newPanelHandler(handler.PanelHandlerConfig{
				Traffic:          insights,
				Geocoder:         geo,
				DefaultLatitude:  19.38,
				DefaultLongitude: 72.83,
			})

			rec := httptest.NewRecorder()
			h.Traffic(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/traffic"+tt.query, http.NoBody))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantLat, insights.lat)
			assert.Equal(t, tt.wantLng, insights.lng)
		})
	}
}

func TestPanelHandler_TrafficErrors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		geocoder handler.Geocoder
		want     int
	}{
		{name: "bad latitude", query: "?lat=abc&lng=2", want: http.StatusBadRequest},
		{name: "missing longitude", query: "?lat=1", want: http.StatusBadRequest},
		{name: "out of range", query: "?lat=91&lng=2", want: http.StatusBadRequest},
		{name: "unknown place", query: "?q=Atlantis", geocoder: &stubGeocoder{err: geocode.ErrNotFound}, want: http.StatusNotFound},
		{name: "lookup failed", query: "?q=London", geocoder: &stubGeocoder{err: geocode.ErrLookupFailed}, want: http.StatusBadGateway},
		{name: "no geocoder", query: "?q=London", want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := &stubInsights{}
			h := newPanelHandler(handler.PanelHandlerConfig{Traffic: insights, Geocoder: tt.geocoder})

			rec := httptest.NewRecorder()
			h.Traffic(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/traffic"+tt.query, http.NoBody))

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.False(t, insights.called)
		})
	}
}

func TestPanelHandler_ResultCarriesUpdatedAt(t *testing.T) {
	at := time.Date(2024, time.March, 6, 8, 30, 0, 0, time.UTC)
	h := newPanelHandler(handler.PanelHandlerConfig{Energy: energyAt{at: at}})

	rec := httptest.NewRecorder()
	h.Energy(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/energy", http.NoBody))

	res := decodeResult[energy.Report](t, rec)
	assert.True(t, at.Equal(res.UpdatedAt))
}

type energyAt struct{ at time.Time }

func (e energyAt) Load(context.Context, string) panel.Result[energy.Report] {
	return panel.Result[energy.Report]{Live: true, UpdatedAt: e.at}
}
