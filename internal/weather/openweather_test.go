package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursemoa/reco-api/internal/resilience"
)

var winStart = time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)

func slot(offset time.Duration, temp float64, humidity int, cond string) Slot {
	return Slot{
		Start:     winStart.Add(offset),
		Duration:  3 * time.Hour,
		TempC:     temp,
		Humidity:  humidity,
		Condition: cond,
	}
}

func TestSummarizeEmptyWindow(t *testing.T) {
	// Slots entirely outside the window contribute nothing.
	slots := []Slot{slot(-6*time.Hour, 20, 50, "Clear"), slot(13*time.Hour, 20, 50, "Clear")}
	s := Summarize(slots, winStart, winStart.Add(12*time.Hour), DefaultThresholds())

	assert.Equal(t, 0, s.Samples)
	assert.False(t, s.RainingAny)
	assert.False(t, s.HotAny)
	assert.Nil(t, s.MaxTemp)
	assert.Nil(t, s.MinTemp)
	assert.Nil(t, s.MaxHumidity)
}

func TestSummarizeORSemantics(t *testing.T) {
	slots := []Slot{
		slot(0, 12, 40, "Clear"),
		slot(3*time.Hour, 31, 40, "Clear"),  // hot
		slot(6*time.Hour, 18, 90, "Clouds"), // humid
	}
	s := Summarize(slots, winStart, winStart.Add(12*time.Hour), DefaultThresholds())

	assert.Equal(t, 3, s.Samples)
	assert.True(t, s.HotAny)
	assert.True(t, s.HumidAny)
	assert.False(t, s.ColdAny)
	assert.False(t, s.RainingAny)
	require.NotNil(t, s.MaxTemp)
	assert.Equal(t, 31.0, *s.MaxTemp)
	assert.Equal(t, 12.0, *s.MinTemp)
	assert.Equal(t, 90, *s.MaxHumidity)
}

func TestSummarizeRainDetection(t *testing.T) {
	rainy := slot(0, 20, 60, "Rain")
	drizzle := slot(0, 20, 60, "Drizzle")
	volumeOnly := slot(0, 20, 60, "Clouds")
	volumeOnly.RainVolume3 = 0.4
	clear := slot(0, 20, 60, "Clear")

	win := winStart.Add(3 * time.Hour)
	for _, tt := range []struct {
		s    Slot
		want bool
	}{{rainy, true}, {drizzle, true}, {volumeOnly, true}, {clear, false}} {
		got := Summarize([]Slot{tt.s}, winStart, win, DefaultThresholds())
		assert.Equal(t, tt.want, got.RainingAny, tt.s.Condition)
	}
}

func TestSummarizeHalfOpenOverlap(t *testing.T) {
	winEnd := winStart.Add(6 * time.Hour)

	// Ends exactly at window start: excluded.
	before := slot(-3*time.Hour, 35, 40, "Clear")
	s := Summarize([]Slot{before}, winStart, winEnd, DefaultThresholds())
	assert.Equal(t, 0, s.Samples)

	// Starts exactly at window end: excluded.
	after := slot(6*time.Hour, 35, 40, "Clear")
	s = Summarize([]Slot{after}, winStart, winEnd, DefaultThresholds())
	assert.Equal(t, 0, s.Samples)

	// Straddles the start boundary: included.
	straddle := slot(-time.Hour, 35, 40, "Clear")
	s = Summarize([]Slot{straddle}, winStart, winEnd, DefaultThresholds())
	assert.Equal(t, 1, s.Samples)
	assert.True(t, s.HotAny)
}

func TestSummarizeColdBoundary(t *testing.T) {
	s := Summarize([]Slot{slot(0, 0, 40, "Clear")}, winStart, winStart.Add(3*time.Hour), DefaultThresholds())
	assert.True(t, s.ColdAny, "temp equal to cold threshold counts")
	s = Summarize([]Slot{slot(0, 0.1, 40, "Clear")}, winStart, winStart.Add(3*time.Hour), DefaultThresholds())
	assert.False(t, s.ColdAny)
}

func forecastJSON(ts ...time.Time) map[string]any {
	list := make([]map[string]any, 0, len(ts))
	for _, t := range ts {
		list = append(list, map[string]any{
			"dt":      t.Unix(),
			"main":    map[string]any{"temp": 22.5, "humidity": 55},
			"weather": []map[string]any{{"main": "Rain"}},
		})
	}
	return map[string]any{"list": list}
}

func TestOpenWeatherWindowSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		json.NewEncoder(w).Encode(forecastJSON(winStart, winStart.Add(3*time.Hour)))
	}))
	defer srv.Close()

	c, err := NewOpenWeather(OpenWeatherOptions{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	s, err := c.WindowSummary(context.Background(), 37.5, 127.1, winStart, winStart.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Samples)
	assert.True(t, s.RainingAny)
	assert.False(t, s.HotAny)
}

func TestOpenWeatherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401,"message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewOpenWeather(OpenWeatherOptions{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.WindowSummary(context.Background(), 37.5, 127.1, winStart, winStart.Add(time.Hour))
	require.Error(t, err)

	var se *resilience.StatusError
	require.True(t, eris.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "openweather", se.Provider)
}

func TestOpenWeatherRetriesTransientStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "oops", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(forecastJSON(winStart))
	}))
	defer srv.Close()

	c, err := NewOpenWeather(OpenWeatherOptions{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	c.retry.InitialBackoff = time.Millisecond

	s, err := c.WindowSummary(context.Background(), 37.5, 127.1, winStart, winStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, s.Samples)
}

func TestNewOpenWeatherRequiresKey(t *testing.T) {
	_, err := NewOpenWeather(OpenWeatherOptions{})
	assert.Error(t, err)
}
