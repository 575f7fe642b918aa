// Package weather summarizes provider forecasts over a time window into the
// boolean flags the hard filter decides on.
package weather

import (
	"context"
	"time"
)

// Summary aggregates the forecast slots overlapping a window with
// OR-semantics. Samples == 0 means no slot overlapped; all flags stay false
// and the extrema are nil.
type Summary struct {
	RainingAny  bool
	HotAny      bool
	ColdAny     bool
	HumidAny    bool
	Samples     int
	MaxTemp     *float64
	MinTemp     *float64
	MaxHumidity *int
}

// Provider produces a window summary for a geographic point and UTC interval.
type Provider interface {
	WindowSummary(ctx context.Context, lat, lon float64, startUTC, endUTC time.Time) (Summary, error)
}

// Thresholds are the configured comparison bounds for the summary flags.
type Thresholds struct {
	HotC         float64
	ColdC        float64
	HumidityHigh int
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{HotC: 30, ColdC: 0, HumidityHigh: 85}
}

// Slot is one forecast sample: a UTC start instant, a fixed duration, and the
// observed conditions.
type Slot struct {
	Start       time.Time
	Duration    time.Duration
	TempC       float64
	Humidity    int
	Condition   string
	RainVolume3 float64
}
