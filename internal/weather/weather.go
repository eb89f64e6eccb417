// Package weather fetches forecasts for a farm location and turns them
// into alerts
package weather

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider name used in errors and usage logs
const Provider = "openweather"

// Report is the current conditions and daily forecast at one location
type Report struct {
	Latitude  decimal.Decimal `json:"location_lat"`
	Longitude decimal.Decimal `json:"location_lon"`
	Timezone  string          `json:"timezone"`
	FetchedAt time.Time       `json:"fetched_at"`
	Current   Current         `json:"current"`
	Daily     []Day           `json:"daily"`
	Alerts    []ProviderAlert `json:"alerts"`
}

// Current is the observation at fetch time
type Current struct {
	Time        time.Time `json:"time"`
	TempC       float64   `json:"temp_c"`
	FeelsLikeC  float64   `json:"feels_like_c"`
	Humidity    int       `json:"humidity"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	RainMM      float64   `json:"rain_1h_mm"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
}

// Day is one day of the forecast
type Day struct {
	Date        time.Time `json:"date"`
	TempMinC    float64   `json:"temp_min_c"`
	TempMaxC    float64   `json:"temp_max_c"`
	Humidity    int       `json:"humidity"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	WindGustMS  float64   `json:"wind_gust_ms"`
	RainMM      float64   `json:"rain_mm"`
	RainChance  float64   `json:"rain_probability"`
	Condition   string    `json:"condition"`
	Summary     string    `json:"summary"`
}

// ProviderAlert is a warning issued by a national weather agency
type ProviderAlert struct {
	Sender      string    `json:"sender"`
	Event       string    `json:"event"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Client fetches reports
type Client interface {
	Forecast(ctx context.Context, lat, lon decimal.Decimal) (*Report, error)
}
