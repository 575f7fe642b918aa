package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/coursemoa/reco-api/internal/hardfilter"
	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/weather"
)

var (
	filterLon   float64
	filterLat   float64
	filterStart string
	filterEnd   string
	filterDrink bool
)

// filterCmd runs the category hard filter standalone, for checking what a
// given point and time window would allow without going through the API.
var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Run the weather hard filter for a point and time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := time.LoadLocation(cfg.Weather.Timezone)
		if err != nil {
			return eris.Wrapf(err, "load timezone %q", cfg.Weather.Timezone)
		}

		thresholds := weather.Thresholds{
			HotC:         cfg.Weather.HotC,
			ColdC:        cfg.Weather.ColdC,
			HumidityHigh: cfg.Weather.HumidityHigh,
		}

		forecast, err := buildForecast(cfg, loc, thresholds)
		if err != nil {
			return err
		}

		engine := hardfilter.New(forecast, hardfilter.Options{
			Thresholds:     thresholds,
			Location:       loc,
			TimePolicy:     hardfilter.TimePolicy(cfg.Reco.TimePolicy),
			WeatherFailure: hardfilter.WeatherFailure(cfg.Reco.WeatherFailure),
		})

		result, err := engine.Run(cmd.Context(), model.UserChoice{
			Start:       [2]float64{filterLon, filterLat},
			TimeWindow:  [2]string{filterStart, filterEnd},
			DrinkIntent: filterDrink,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	filterCmd.Flags().Float64Var(&filterLon, "lon", 127.1, "start longitude")
	filterCmd.Flags().Float64Var(&filterLat, "lat", 37.5, "start latitude")
	filterCmd.Flags().StringVar(&filterStart, "start", "12:00", "window start (HH:MM, local)")
	filterCmd.Flags().StringVar(&filterEnd, "end", "20:00", "window end (HH:MM, local)")
	filterCmd.Flags().BoolVar(&filterDrink, "drink", false, "drink intent")
	rootCmd.AddCommand(filterCmd)
}
