package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/coursemoa/reco-api/internal/category"
	"github.com/coursemoa/reco-api/internal/geo"
	"github.com/coursemoa/reco-api/internal/timewindow"
)

// UserChoice is the trigger payload supplied by the caller. Start is a
// [lon, lat] pair (GeoJSON order); unpack it with geo.PointFromLonLat.
type UserChoice struct {
	Start       [2]float64 `json:"start"`
	TimeWindow  [2]string  `json:"time_window"`
	Mode        string     `json:"mode,omitempty"`
	DrinkIntent bool       `json:"drink_intent"`
	RadiusM     int        `json:"radius_m,omitempty"`
}

// StartPoint unpacks the start coordinate.
func (c UserChoice) StartPoint() geo.Point {
	return geo.PointFromLonLat(c.Start)
}

// Validate checks the choice at pipeline entry: both time tokens must parse,
// the start coordinate must be in range, and radius when present is positive.
func (c UserChoice) Validate() error {
	for _, hm := range c.TimeWindow {
		if _, _, err := timewindow.ParseHM(hm); err != nil {
			return err
		}
	}
	if err := c.StartPoint().Validate(); err != nil {
		return err
	}
	if c.RadiusM < 0 {
		return eris.Errorf("model: radius_m must be positive, got %d", c.RadiusM)
	}
	return nil
}

// ProfileBundle is the opaque user/partner/couple context returned by the
// auth service. The blobs are passed through to the LLM untouched.
type ProfileBundle struct {
	User    json.RawMessage `json:"user"`
	Partner json.RawMessage `json:"partner"`
	Couple  json.RawMessage `json:"couple"`
}

// State is the per-request working record threaded through every pipeline
// stage. It is owned by exactly one request and never shared; stages mutate
// it in place and hand it to the next stage.
type State struct {
	RequestID string
	Query     string

	Profiles ProfileBundle
	Choice   UserChoice

	AvailableCategories []category.Category
	RecommendedSequence []category.Category

	Recommendations         []POI
	AlreadySelected         []POI
	PreviousRecommendations []POI
	ExcludePOIs             []POI
}

// ExclusionSet returns the keys of every venue this request must not offer
// again: prior picks in this run, the previous course, and explicit excludes.
func (s *State) ExclusionSet() KeySet {
	return NewKeySet(s.AlreadySelected, s.PreviousRecommendations, s.ExcludePOIs)
}

// FilterResult is the hard filter's output: the surviving categories sorted
// lexicographically and the removal reasons per excluded category. Computed
// fresh per request, never persisted.
type FilterResult struct {
	Allowed  []category.Category            `json:"allowed_categories"`
	Excluded map[category.Category][]string `json:"excluded_categories"`
	Debug    FilterDebug                    `json:"hardfilter_debug"`
}

// FilterDebug carries the inputs the filter decided on, for diagnosability.
type FilterDebug struct {
	WindowUTC    [2]string          `json:"window_utc"`
	Samples      int                `json:"forecast_samples"`
	RainingAny   bool               `json:"raining_any"`
	HotAny       bool               `json:"hot_any"`
	ColdAny      bool               `json:"cold_any"`
	HumidAny     bool               `json:"humid_any"`
	MaxTemp      *float64           `json:"max_temp"`
	MinTemp      *float64           `json:"min_temp"`
	MaxHumidity  *int               `json:"max_humidity"`
	TimeWindow   [2]string          `json:"time_window"`
	DrinkIntent  bool               `json:"drink_intent"`
	Thresholds   map[string]float64 `json:"thresholds"`
	Degraded     bool               `json:"degraded,omitempty"`
	DegradedFrom string             `json:"degraded_from,omitempty"`
}
