package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/resilience"
	"github.com/coursemoa/reco-api/internal/timewindow"
)

const forecastPath = "/data/2.5/forecast"

// slotDuration is the fixed length of a free-tier forecast slot.
const slotDuration = 3 * time.Hour

// OpenWeather queries the free 5-day/3-hour forecast endpoint.
type OpenWeather struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	thresholds Thresholds
	retry      resilience.RetryConfig
}

// OpenWeatherOptions configures the client.
type OpenWeatherOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	Thresholds Thresholds
}

// NewOpenWeather creates a forecast provider.
func NewOpenWeather(opts OpenWeatherOptions) (*OpenWeather, error) {
	if opts.APIKey == "" {
		return nil, eris.New("weather: missing OpenWeather API key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openweathermap.org"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 7 * time.Second
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	return &OpenWeather{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		thresholds: opts.Thresholds,
		retry:      resilience.DefaultRetryConfig(),
	}, nil
}

type forecastResponse struct {
	List []forecastItem `json:"list"`
}

type forecastItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Rain struct {
		ThreeH float64 `json:"3h"`
	} `json:"rain"`
}

func (c *OpenWeather) fetch(ctx context.Context, lat, lon float64) ([]Slot, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+forecastPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "weather: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "weather: forecast request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "weather: read forecast body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{
			Provider:   "openweather",
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 200),
		}
	}

	var parsed forecastResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "weather: decode forecast")
	}

	slots := make([]Slot, 0, len(parsed.List))
	for _, it := range parsed.List {
		cond := ""
		if len(it.Weather) > 0 {
			cond = it.Weather[0].Main
		}
		slots = append(slots, Slot{
			Start:       time.Unix(it.Dt, 0).UTC(),
			Duration:    slotDuration,
			TempC:       it.Main.Temp,
			Humidity:    it.Main.Humidity,
			Condition:   cond,
			RainVolume3: it.Rain.ThreeH,
		})
	}
	return slots, nil
}

// WindowSummary fetches the forecast for the point and aggregates the slots
// overlapping [startUTC, endUTC).
func (c *OpenWeather) WindowSummary(ctx context.Context, lat, lon float64, startUTC, endUTC time.Time) (Summary, error) {
	slots, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Slot, error) {
		return c.fetch(ctx, lat, lon)
	})
	if err != nil {
		return Summary{}, err
	}

	summary := Summarize(slots, startUTC, endUTC, c.thresholds)
	zap.L().Debug("weather: window summarized",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.Int("samples", summary.Samples),
		zap.Bool("raining", summary.RainingAny),
	)
	return summary, nil
}

// Summarize aggregates the slots whose half-open interval overlaps the
// window. Exported separately so the overlap and threshold semantics are
// testable without a live provider.
func Summarize(slots []Slot, startUTC, endUTC time.Time, th Thresholds) Summary {
	var s Summary
	for _, slot := range slots {
		if !timewindow.SlotOverlaps(slot.Start, slot.Duration, startUTC, endUTC) {
			continue
		}
		s.Samples++

		if isRain(slot) {
			s.RainingAny = true
		}
		if slot.TempC >= th.HotC {
			s.HotAny = true
		}
		if slot.TempC <= th.ColdC {
			s.ColdAny = true
		}
		if slot.Humidity >= th.HumidityHigh {
			s.HumidAny = true
		}

		t := slot.TempC
		if s.MaxTemp == nil || t > *s.MaxTemp {
			v := t
			s.MaxTemp = &v
		}
		if s.MinTemp == nil || t < *s.MinTemp {
			v := t
			s.MinTemp = &v
		}
		h := slot.Humidity
		if s.MaxHumidity == nil || h > *s.MaxHumidity {
			v := h
			s.MaxHumidity = &v
		}
	}
	return s
}

func isRain(s Slot) bool {
	cond := strings.ToLower(s.Condition)
	return strings.Contains(cond, "rain") || strings.Contains(cond, "drizzle") || s.RainVolume3 > 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
