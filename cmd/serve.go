package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/agent"
	"github.com/coursemoa/reco-api/internal/category"
	"github.com/coursemoa/reco-api/internal/config"
	"github.com/coursemoa/reco-api/internal/hardfilter"
	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/orchestrator"
	"github.com/coursemoa/reco-api/internal/places"
	"github.com/coursemoa/reco-api/internal/profile"
	"github.com/coursemoa/reco-api/internal/ranker"
	"github.com/coursemoa/reco-api/internal/resilience"
	"github.com/coursemoa/reco-api/internal/weather"
	"github.com/coursemoa/reco-api/pkg/anthropic"
)

const (
	recommendExplain = "오늘 무드에 맞는 코스입니다~"
	rerollExplain    = "선택한 장소를 새로운 장소로 변경했어요!"
)

// profileFetcher, sequencePlanner and courseRunner are the seams the HTTP
// handlers depend on, kept narrow so tests can stub them.
type profileFetcher interface {
	RecommendationData(ctx context.Context, coupleID, authorization string) (*model.ProfileBundle, error)
}

type sequencePlanner interface {
	PlanSequence(ctx context.Context, in ranker.PlanInput) ([]category.Category, error)
}

type courseRunner interface {
	Run(ctx context.Context, seq []category.Category, state *model.State) []model.POI
	Reroll(ctx context.Context, excludePOIs, previous []model.POI, state *model.State) []model.POI
}

type filterEngine interface {
	Run(ctx context.Context, choice model.UserChoice) (model.FilterResult, error)
}

// serverEnv bundles the wired dependencies of the HTTP surface.
type serverEnv struct {
	profiles profileFetcher
	filter   filterEngine
	planner  sequencePlanner
	runner   courseRunner
	origins  []string
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildServerEnv(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildServerEnv wires the production clients from config.
func buildServerEnv(cfg *config.Config) (*serverEnv, error) {
	loc, err := time.LoadLocation(cfg.Weather.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "load timezone %q", cfg.Weather.Timezone)
	}

	thresholds := weather.Thresholds{
		HotC:         cfg.Weather.HotC,
		ColdC:        cfg.Weather.ColdC,
		HumidityHigh: cfg.Weather.HumidityHigh,
	}

	forecast, err := buildForecast(cfg, loc, thresholds)
	if err != nil {
		return nil, err
	}

	search, err := places.New(places.Options{
		APIKey:     cfg.Places.APIKey,
		BaseURL:    cfg.Places.BaseURL,
		Timeout:    config.Timeout(cfg.Places.TimeoutSecs, 10*time.Second),
		Language:   cfg.Places.Language,
		PageDelay:  time.Duration(cfg.Places.PageDelaySecs * float64(time.Second)),
		MaxPages:   cfg.Places.MaxPages,
		RatePerSec: cfg.Places.RatePerSec,
	})
	if err != nil {
		return nil, err
	}

	profiles, err := profile.New(cfg.Auth.BaseURL, profile.Options{
		Timeout: config.Timeout(cfg.Auth.TimeoutSecs, 10*time.Second),
	})
	if err != nil {
		return nil, err
	}

	rank := ranker.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)

	venueAgent := agent.New(search, rank, agent.Options{
		DefaultRadiusM: cfg.Places.DefaultRadiusM,
		RankTimeout:    config.Timeout(cfg.Reco.RankTimeoutSecs, 10*time.Second),
	})

	return &serverEnv{
		profiles: profiles,
		filter: hardfilter.New(forecast, hardfilter.Options{
			Thresholds:     thresholds,
			Location:       loc,
			TimePolicy:     hardfilter.TimePolicy(cfg.Reco.TimePolicy),
			WeatherFailure: hardfilter.WeatherFailure(cfg.Reco.WeatherFailure),
		}),
		planner: rank,
		runner:  orchestrator.NewRunner(venueAgent, cfg.Reco.MaxConcurrentCategories),
		origins: cfg.Server.AllowedOrigins,
	}, nil
}

// buildForecast selects the configured forecast provider.
func buildForecast(cfg *config.Config, loc *time.Location, thresholds weather.Thresholds) (weather.Provider, error) {
	timeout := config.Timeout(cfg.Weather.TimeoutSecs, 7*time.Second)

	switch cfg.Weather.Provider {
	case "kma":
		return weather.NewKMA(weather.KMAOptions{
			ServiceKey: cfg.Weather.KMAServiceKey,
			BaseURL:    cfg.Weather.KMABaseURL,
			Timeout:    timeout,
			Thresholds: thresholds,
			Location:   loc,
		})
	default:
		return weather.NewOpenWeather(weather.OpenWeatherOptions{
			APIKey:     cfg.Weather.APIKey,
			BaseURL:    cfg.Weather.BaseURL,
			Timeout:    timeout,
			Thresholds: thresholds,
		})
	}
}

func newRouter(env *serverEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   env.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Couple-Id"},
		AllowCredentials: false,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/recommends", env.handleRecommends)
	r.Post("/recommends/replace", env.handleReplace)

	return r
}

type recommendRequest struct {
	UserChoice model.UserChoice `json:"user_choice"`
}

type replaceRequest struct {
	UserChoice              model.UserChoice `json:"user_choice"`
	ExcludePOIs             []model.POI      `json:"exclude_pois"`
	PreviousRecommendations []model.POI      `json:"previous_recommendations"`
}

type courseResponse struct {
	Explain string      `json:"explain"`
	Data    []model.POI `json:"data"`
}

func (env *serverEnv) handleRecommends(w http.ResponseWriter, r *http.Request) {
	state, ok := env.prepareState(w, r, func() (model.UserChoice, error) {
		var req recommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return model.UserChoice{}, eris.Wrap(err, "decode body")
		}
		return req.UserChoice, nil
	})
	if !ok {
		return
	}

	result, err := env.filter.Run(r.Context(), state.Choice)
	if err != nil {
		zap.L().Error("recommends: hard filter failed",
			zap.String("request_id", state.RequestID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "weather lookup failed")
		return
	}
	state.AvailableCategories = result.Allowed

	seq, err := env.planner.PlanSequence(r.Context(), ranker.PlanInput{
		Allowed: result.Allowed,
		State:   state,
	})
	if err != nil {
		zap.L().Error("recommends: sequence planning failed",
			zap.String("request_id", state.RequestID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "sequence planning failed")
		return
	}
	state.RecommendedSequence = seq

	data := env.runner.Run(r.Context(), seq, state)

	zap.L().Info("recommends: course built",
		zap.String("request_id", state.RequestID),
		zap.Int("sequence_len", len(seq)),
		zap.Int("venues", len(data)),
	)
	writeJSON(w, http.StatusOK, courseResponse{Explain: recommendExplain, Data: data})
}

func (env *serverEnv) handleReplace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	state, ok := env.prepareState(w, r, func() (model.UserChoice, error) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return model.UserChoice{}, eris.Wrap(err, "decode body")
		}
		return req.UserChoice, nil
	})
	if !ok {
		return
	}
	if len(req.ExcludePOIs) == 0 {
		writeError(w, http.StatusBadRequest, "exclude_pois is required")
		return
	}

	state.ExcludePOIs = req.ExcludePOIs
	state.PreviousRecommendations = req.PreviousRecommendations

	rerolled := env.runner.Reroll(r.Context(), req.ExcludePOIs, req.PreviousRecommendations, state)
	data := orchestrator.Merge(req.PreviousRecommendations, rerolled)

	zap.L().Info("replace: reroll finished",
		zap.String("request_id", state.RequestID),
		zap.Int("requested", len(req.ExcludePOIs)),
		zap.Int("replaced", len(rerolled)),
	)
	writeJSON(w, http.StatusOK, courseResponse{Explain: rerollExplain, Data: data})
}

// prepareState handles the shared front half of both endpoints: identity
// headers, body decoding, choice validation and the profile fetch. It writes
// the error response itself and returns ok=false when the request is done.
func (env *serverEnv) prepareState(w http.ResponseWriter, r *http.Request, decode func() (model.UserChoice, error)) (*model.State, bool) {
	coupleID := r.Header.Get("X-Couple-Id")
	if coupleID == "" {
		writeError(w, http.StatusUnauthorized, "missing couple identity")
		return nil, false
	}
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return nil, false
	}

	choice, err := decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := choice.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	bundle, err := env.profiles.RecommendationData(r.Context(), coupleID, authorization)
	if err != nil {
		status := http.StatusInternalServerError
		detail := "profile service unavailable"
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			detail = fmt.Sprintf("profile service returned %d", statusErr.StatusCode)
		}
		zap.L().Error("profile fetch failed",
			zap.String("couple_id", coupleID),
			zap.Error(err),
		)
		writeError(w, status, detail)
		return nil, false
	}

	return &model.State{
		RequestID: uuid.NewString(),
		Query:     "데이트 추천",
		Profiles:  *bundle,
		Choice:    choice,
	}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
