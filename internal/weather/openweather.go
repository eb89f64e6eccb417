package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/aethra/krishi/internal/usage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OpenWeather calls the One Call 3.0 API
type OpenWeather struct {
	cfg      config.WeatherConfig
	http     *http.Client
	policy   *resilience.Policy
	recorder usage.Recorder
	log      *zap.Logger
}

// NewOpenWeather creates the OpenWeatherMap client
func NewOpenWeather(cfg config.WeatherConfig, recorder usage.Recorder, log *zap.Logger) *OpenWeather {
	return &OpenWeather{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		policy: resilience.NewPolicy(resilience.Settings{
			Name:    Provider,
			Timeout: cfg.Timeout,
		}, log),
		recorder: recorder,
		log:      log.Named("openweather"),
	}
}

type oneCallResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone"`
	Current  *struct {
		Dt        int64          `json:"dt"`
		Temp      float64        `json:"temp"`
		FeelsLike float64        `json:"feels_like"`
		Humidity  int            `json:"humidity"`
		WindSpeed float64        `json:"wind_speed"`
		Rain      map[string]any `json:"rain"`
		Weather   []owCondition  `json:"weather"`
	} `json:"current"`
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Humidity  int           `json:"humidity"`
		WindSpeed float64       `json:"wind_speed"`
		WindGust  float64       `json:"wind_gust"`
		Rain      float64       `json:"rain"`
		Pop       float64       `json:"pop"`
		Summary   string        `json:"summary"`
		Weather   []owCondition `json:"weather"`
	} `json:"daily"`
	Alerts []struct {
		SenderName  string `json:"sender_name"`
		Event       string `json:"event"`
		Start       int64  `json:"start"`
		End         int64  `json:"end"`
		Description string `json:"description"`
	} `json:"alerts"`
}

type owCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func (ow *OpenWeather) Forecast(ctx context.Context, lat, lon decimal.Decimal) (*Report, error) {
	if ow.cfg.APIKey == "" {
		return nil, errors.NewUpstreamError(Provider, errors.UpstreamUnavailable, fmt.Errorf("OPENWEATHER_API_KEY is not configured"))
	}

	query := url.Values{}
	query.Set("lat", lat.String())
	query.Set("lon", lon.String())
	query.Set("exclude", "minutely,hourly")
	query.Set("units", ow.cfg.Units)
	query.Set("appid", ow.cfg.APIKey)
	endpoint := ow.cfg.BaseURL + "/onecall"

	started := time.Now()
	var payload oneCallResponse
	err := ow.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		resp, err := ow.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if err := resilience.CheckStatus(resp.StatusCode, string(body)); err != nil {
			return err
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return resilience.Permanent(fmt.Errorf("%w: %v", resilience.ErrMalformed, err))
		}
		if payload.Current == nil {
			return resilience.Permanent(fmt.Errorf("%w: missing current conditions", resilience.ErrMalformed))
		}
		return nil
	})

	ow.recorder.Record(ctx, usage.Call{
		API:      models.APIOpenWeather,
		Endpoint: endpoint,
		Request:  map[string]string{"lat": lat.String(), "lon": lon.String(), "units": ow.cfg.Units},
		Started:  started,
		Err:      err,
	})
	if err != nil {
		ow.log.Warn("forecast failed", zap.String("lat", lat.String()), zap.String("lon", lon.String()), zap.Error(err))
		return nil, resilience.Classify(Provider, err)
	}

	return payload.toReport(lat, lon), nil
}

func (p *oneCallResponse) toReport(lat, lon decimal.Decimal) *Report {
	report := &Report{
		Latitude:  lat,
		Longitude: lon,
		Timezone:  p.Timezone,
		FetchedAt: time.Now().UTC(),
		Daily:     make([]Day, 0, len(p.Daily)),
		Alerts:    make([]ProviderAlert, 0, len(p.Alerts)),
	}

	c := p.Current
	report.Current = Current{
		Time:        time.Unix(c.Dt, 0).UTC(),
		TempC:       c.Temp,
		FeelsLikeC:  c.FeelsLike,
		Humidity:    c.Humidity,
		WindSpeedMS: c.WindSpeed,
	}
	if v, ok := c.Rain["1h"].(float64); ok {
		report.Current.RainMM = v
	}
	if len(c.Weather) > 0 {
		report.Current.Condition = c.Weather[0].Main
		report.Current.Description = c.Weather[0].Description
	}

	for _, d := range p.Daily {
		day := Day{
			Date:        dayStart(time.Unix(d.Dt, 0)),
			TempMinC:    d.Temp.Min,
			TempMaxC:    d.Temp.Max,
			Humidity:    d.Humidity,
			WindSpeedMS: d.WindSpeed,
			WindGustMS:  d.WindGust,
			RainMM:      d.Rain,
			RainChance:  d.Pop,
			Summary:     d.Summary,
		}
		if len(d.Weather) > 0 {
			day.Condition = d.Weather[0].Main
		}
		report.Daily = append(report.Daily, day)
	}

	for _, a := range p.Alerts {
		report.Alerts = append(report.Alerts, ProviderAlert{
			Sender:      a.SenderName,
			Event:       a.Event,
			Description: a.Description,
			Start:       time.Unix(a.Start, 0).UTC(),
			End:         time.Unix(a.End, 0).UTC(),
		})
	}
	return report
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
