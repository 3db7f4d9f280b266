package weather

import (
	"errors"
)

// ErrUpstream is returned when WeatherAPI answers with an error object instead of a forecast.
var ErrUpstream = errors.New("weather provider returned an error")

// Report is the weather panel payload.
type Report struct {
	City        string        `json:"city"`
	Temperature float64       `json:"temperature"`
	FeelsLike   float64       `json:"feelsLike"`
	Humidity    float64       `json:"humidity"`
	WindSpeed   float64       `json:"windSpeed"` // km/h
	AirQuality  int           `json:"airQuality"`
	Condition   string        `json:"condition"`
	AirMetrics  []Metric      `json:"airMetrics"`
	Forecast    []ForecastDay `json:"forecast"`
}

// Metric is a named pollutant concentration.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ForecastDay is one day of the multi-day forecast.
type ForecastDay struct {
	Day         string  `json:"day"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
}

// AirQuality is the air-quality panel payload.
type AirQuality struct {
	City    string   `json:"city"`
	Index   int      `json:"index"`
	Label   string   `json:"label"`
	Metrics []Metric `json:"metrics"`
}

// AQI labels.
const (
	LabelGood                  = "Good"
	LabelModerate              = "Moderate"
	LabelUnhealthyForSensitive = "Unhealthy for Sensitive Groups"
	LabelUnhealthy             = "Unhealthy"
	LabelVeryUnhealthy         = "Very Unhealthy"
	LabelHazardous             = "Hazardous"
)

// AQILabel returns the category name for an air quality index.
func AQILabel(aqi int) string {
	switch {
	case aqi <= 50:
		return LabelGood
	case aqi <= 100:
		return LabelModerate
	case aqi <= 150:
		return LabelUnhealthyForSensitive
	case aqi <= 200:
		return LabelUnhealthy
	case aqi <= 300:
		return LabelVeryUnhealthy
	default:
		return LabelHazardous
	}
}

// AirQualityOf derives the air-quality panel from a weather report.
func AirQualityOf(r Report) AirQuality {
	return AirQuality{
		City:    r.City,
		Index:   r.AirQuality,
		Label:   AQILabel(r.AirQuality),
		Metrics: r.AirMetrics,
	}
}
