// Package weather provides the weather and air-quality panels backed by the
// WeatherAPI.com forecast endpoint.
package weather

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/syntaxsurfers/smartcity/internal/panel"
)

const (
	// DefaultBaseURL is the WeatherAPI.com v1 root.
	DefaultBaseURL = "https://api.weatherapi.com/v1"

	// ForecastDays is the number of forecast days requested.
	ForecastDays = 5

	// defaultAQI is used when the response carries no air quality block.
	defaultAQI = 50
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	BaseURL string
	APIKey  string
	// DefaultCity is used when no city is requested.
	DefaultCity string
	Fetcher     panel.Fetcher
	Loader      *panel.Loader
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service loads weather panels for a city.
type Service struct {
	baseURL     string
	apiKey      string
	defaultCity string
	fetcher     panel.Fetcher
	loader      *panel.Loader
	now         func() time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	city := cfg.DefaultCity
	if city == "" {
		city = "Palghar"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      cfg.APIKey,
		defaultCity: city,
		fetcher:     cfg.Fetcher,
		loader:      cfg.Loader,
		now:         now,
	}
}

// Definition returns the weather panel definition for a city.
func (s *Service) Definition(city string) panel.Definition[Report] {
	city = s.city(city)
	return panel.Definition[Report]{
		Source: panel.Source{
			Name: "weather",
			URL:  ForecastURL(s.baseURL, s.apiKey, city),
		},
		Fetcher:   s.fetcher,
		Transform: func(body []byte) (Report, error) { return TransformForecast(body, city) },
		Sample:    func() Report { return SampleReport(city, s.now(), panel.NewRand()) },
	}
}

// Forecast loads the weather panel.
func (s *Service) Forecast(ctx context.Context, city string) panel.Result[Report] {
	return panel.Load(ctx, s.loader, s.Definition(city))
}

// AirQuality loads the air-quality panel. It shares the forecast call.
func (s *Service) AirQuality(ctx context.Context, city string) panel.Result[AirQuality] {
	def := s.Definition(city)
	return panel.Load(ctx, s.loader, panel.Definition[AirQuality]{
		Source: panel.Source{
			Name: "air-quality",
			URL:  def.Source.URL,
		},
		Fetcher: def.Fetcher,
		Transform: func(body []byte) (AirQuality, error) {
			r, err := def.Transform(body)
			if err != nil {
				return AirQuality{}, err
			}
			return AirQualityOf(r), nil
		},
		Sample: func() AirQuality { return AirQualityOf(def.Sample()) },
	})
}

func (s *Service) city(city string) string {
	if c := strings.TrimSpace(city); c != "" {
		return c
	}
	return s.defaultCity
}

// ForecastURL builds the forecast request for a city.
func ForecastURL(baseURL, apiKey, city string) string {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("q", city)
	q.Set("days", fmt.Sprint(ForecastDays))
	q.Set("aqi", "yes")
	return baseURL + "/forecast.json?" + q.Encode()
}

type forecastResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Location *struct {
		Name string `json:"name"`
	} `json:"location"`
	Current *struct {
		TempC      *float64 `json:"temp_c"`
		FeelsLikeC float64  `json:"feelslike_c"`
		Humidity   float64  `json:"humidity"`
		WindKph    float64  `json:"wind_kph"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
		AirQuality *struct {
			EPAIndex *int    `json:"us-epa-index"`
			CO       float64 `json:"co"`
			NO2      float64 `json:"no2"`
			O3       float64 `json:"o3"`
			SO2      float64 `json:"so2"`
			PM25     float64 `json:"pm2_5"`
			PM10     float64 `json:"pm10"`
		} `json:"air_quality"`
	} `json:"current"`
	Forecast struct {
		Days []struct {
			Date string `json:"date"`
			Day  struct {
				AvgTempC  float64 `json:"avgtemp_c"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// TransformForecast maps a forecast.json response onto a Report.
func TransformForecast(body []byte, city string) (Report, error) {
	var resp forecastResponse
	if err := panel.DecodeJSON(body, &resp); err != nil {
		return Report{}, err
	}
	if resp.Error != nil {
		return Report{}, fmt.Errorf("%w: %w: %s", panel.ErrTransformFailure, ErrUpstream, resp.Error.Message)
	}
	if resp.Current == nil {
		return Report{}, panel.MissingField("current")
	}
	if resp.Current.TempC == nil {
		return Report{}, panel.MissingField("current.temp_c")
	}
	if resp.Location != nil && resp.Location.Name != "" {
		city = resp.Location.Name
	}

	cur := resp.Current
	r := Report{
		City:        city,
		Temperature: *cur.TempC,
		FeelsLike:   cur.FeelsLikeC,
		Humidity:    cur.Humidity,
		WindSpeed:   cur.WindKph,
		AirQuality:  defaultAQI,
		Condition:   orUnknown(cur.Condition.Text),
		Forecast:    make([]ForecastDay, 0, len(resp.Forecast.Days)),
	}

	var co, no2, o3, so2, pm25, pm10 float64
	if aq := cur.AirQuality; aq != nil {
		if aq.EPAIndex != nil {
			r.AirQuality = *aq.EPAIndex
		}
		co, no2, o3, so2, pm25, pm10 = aq.CO, aq.NO2, aq.O3, aq.SO2, aq.PM25, aq.PM10
	}
	r.AirMetrics = airMetrics(co, no2, o3, so2, pm25, pm10)

	for _, d := range resp.Forecast.Days {
		r.Forecast = append(r.Forecast, ForecastDay{
			Day:         dayLabel(d.Date),
			Temperature: d.Day.AvgTempC,
			Condition:   orUnknown(d.Day.Condition.Text),
		})
	}
	return r, nil
}

var sampleConditions = []string{"Sunny", "Partly cloudy", "Cloudy", "Light rain", "Mist"}

// SampleReport generates a plausible report for city.
func SampleReport(city string, now time.Time, rng *rand.Rand) Report {
	temp := panel.Round(24+rng.Float64()*10, 1)
	r := Report{
		City:        city,
		Temperature: temp,
		FeelsLike:   panel.Round(temp+rng.Float64()*3, 1),
		Humidity:    float64(55 + rng.IntN(35)),
		WindSpeed:   panel.Round(5+rng.Float64()*20, 1),
		AirQuality:  1 + rng.IntN(150),
		Condition:   sampleConditions[rng.IntN(len(sampleConditions))],
		AirMetrics: airMetrics(
			panel.Round(200+rng.Float64()*400, 1),
			panel.Round(5+rng.Float64()*40, 1),
			panel.Round(20+rng.Float64()*80, 1),
			panel.Round(1+rng.Float64()*15, 1),
			panel.Round(10+rng.Float64()*60, 1),
			panel.Round(20+rng.Float64()*90, 1),
		),
		Forecast: make([]ForecastDay, ForecastDays),
	}
	for i := range r.Forecast {
		r.Forecast[i] = ForecastDay{
			Day:         now.AddDate(0, 0, i).Format("Mon"),
			Temperature: panel.Round(temp-3+rng.Float64()*6, 1),
			Condition:   sampleConditions[rng.IntN(len(sampleConditions))],
		}
	}
	return r
}

func airMetrics(co, no2, o3, so2, pm25, pm10 float64) []Metric {
	return []Metric{
		{Name: "CO", Value: co},
		{Name: "NO₂", Value: no2},
		{Name: "O₃", Value: o3},
		{Name: "SO₂", Value: so2},
		{Name: "PM2.5", Value: pm25},
		{Name: "PM10", Value: pm10},
	}
}

func dayLabel(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("Mon")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
