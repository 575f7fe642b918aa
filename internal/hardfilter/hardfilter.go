// Package hardfilter deterministically removes venue categories that the
// weather window or user preferences rule out, before any LLM call happens.
package hardfilter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/category"
	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/timewindow"
	"github.com/coursemoa/reco-api/internal/weather"
)

// TimePolicy selects how the evaluation window is derived from the choice.
type TimePolicy string

const (
	// TimePolicyWindow uses the user-chosen start, rolling a non-positive
	// window past midnight. Production default.
	TimePolicyWindow TimePolicy = "window"
	// TimePolicyFromNow pins the start to now and rejects ends in the past.
	TimePolicyFromNow TimePolicy = "from_now"
)

// WeatherFailure selects what happens when the forecast provider is down.
type WeatherFailure string

const (
	// WeatherFail propagates the provider error; the request fails.
	WeatherFail WeatherFailure = "fail"
	// WeatherDegrade proceeds with no weather signals and flags the result.
	WeatherDegrade WeatherFailure = "degrade"
)

// Options configure an Engine.
type Options struct {
	Thresholds     weather.Thresholds
	Location       *time.Location
	TimePolicy     TimePolicy
	WeatherFailure WeatherFailure
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Engine applies the removal rules to the fixed category set.
type Engine struct {
	provider weather.Provider
	opts     Options
}

// New creates an Engine over the given forecast provider.
func New(provider weather.Provider, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.TimePolicy == "" {
		opts.TimePolicy = TimePolicyWindow
	}
	if opts.WeatherFailure == "" {
		opts.WeatherFailure = WeatherFail
	}
	if opts.Thresholds == (weather.Thresholds{}) {
		opts.Thresholds = weather.DefaultThresholds()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{provider: provider, opts: opts}
}

// flagReasons pairs each summary flag with its machine-readable reason tag.
// Rules are monotonic removals; a category once removed is never re-added.
var flagReasons = []struct {
	set    func(weather.Summary) bool
	reason string
}{
	{func(s weather.Summary) bool { return s.RainingAny }, "weather:rain(window)"},
	{func(s weather.Summary) bool { return s.HotAny }, "weather:hot(window)"},
	{func(s weather.Summary) bool { return s.ColdAny }, "weather:cold(window)"},
	{func(s weather.Summary) bool { return s.HumidAny }, "weather:humid(window)"},
}

// Run resolves the time window, summarizes the weather at the choice's start
// coordinate and produces the allowed/excluded category split.
func (e *Engine) Run(ctx context.Context, choice model.UserChoice) (model.FilterResult, error) {
	if err := choice.Validate(); err != nil {
		return model.FilterResult{}, err
	}

	start, end, err := e.resolveWindow(choice)
	if err != nil {
		return model.FilterResult{}, err
	}

	point := choice.StartPoint()
	summary, degradedFrom := weather.Summary{}, ""
	summary, err = e.provider.WindowSummary(ctx, point.Lat, point.Lon, start, end)
	if err != nil {
		if e.opts.WeatherFailure == WeatherFail {
			return model.FilterResult{}, eris.Wrap(err, "hardfilter: weather summary")
		}
		// Degraded mode: no weather signals, so no weather removals.
		zap.L().Warn("hardfilter: weather unavailable, degrading to no-signal window",
			zap.Error(err),
		)
		summary = weather.Summary{}
		degradedFrom = err.Error()
	}

	allowed := category.SetOf(category.All...)
	reasons := make(map[category.Category][]string)

	exclude := func(c category.Category, reason string) {
		delete(allowed, c)
		reasons[c] = append(reasons[c], reason)
	}

	// Only OUTDOOR_STRICT categories are weather-sensitive. INDOOR_STRICT and
	// MIXED survive all weather rules.
	for _, fr := range flagReasons {
		if !fr.set(summary) {
			continue
		}
		for _, c := range category.OutdoorStrict.Sorted() {
			exclude(c, fr.reason)
		}
	}

	if !choice.DrinkIntent && allowed.Contains(category.Bar) {
		exclude(category.Bar, "drink_intent:false")
	}

	result := model.FilterResult{
		Allowed:  allowed.Sorted(),
		Excluded: reasons,
		Debug: model.FilterDebug{
			WindowUTC:   [2]string{start.Format(time.RFC3339), end.Format(time.RFC3339)},
			Samples:     summary.Samples,
			RainingAny:  summary.RainingAny,
			HotAny:      summary.HotAny,
			ColdAny:     summary.ColdAny,
			HumidAny:    summary.HumidAny,
			MaxTemp:     summary.MaxTemp,
			MinTemp:     summary.MinTemp,
			MaxHumidity: summary.MaxHumidity,
			TimeWindow:  choice.TimeWindow,
			DrinkIntent: choice.DrinkIntent,
			Thresholds: map[string]float64{
				"hot_c":         e.opts.Thresholds.HotC,
				"cold_c":        e.opts.Thresholds.ColdC,
				"humidity_high": float64(e.opts.Thresholds.HumidityHigh),
			},
			Degraded:     degradedFrom != "",
			DegradedFrom: degradedFrom,
		},
	}

	zap.L().Info("hardfilter: complete",
		zap.Int("allowed", len(result.Allowed)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Bool("degraded", result.Debug.Degraded),
	)
	return result, nil
}

func (e *Engine) resolveWindow(choice model.UserChoice) (time.Time, time.Time, error) {
	now := e.opts.Now()
	switch e.opts.TimePolicy {
	case TimePolicyFromNow:
		return timewindow.ResolveFromNow(choice.TimeWindow[1], e.opts.Location, now)
	default:
		return timewindow.Resolve(choice.TimeWindow[0], choice.TimeWindow[1], e.opts.Location, now)
	}
}
