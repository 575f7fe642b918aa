// Package agent runs the per-category recommendation flow: place search,
// radius and exclusion filtering, then LLM ranking.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/category"
	"github.com/coursemoa/reco-api/internal/geo"
	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/places"
	"github.com/coursemoa/reco-api/internal/ranker"
)

// fallbackLocation is used when neither the request nor the user choice
// carries a start coordinate (Jamsil).
var fallbackLocation = geo.Point{Lat: 37.5, Lon: 127.1}

const (
	defaultRadiusM     = 1500
	defaultRankTimeout = 10 * time.Second
)

// Ranking is the slice of the ranker the agent needs.
type Ranking interface {
	RankPOIs(ctx context.Context, in ranker.RankInput) (string, []model.POI, error)
}

// Agent recommends venues for a single category.
type Agent struct {
	search      places.Searcher
	ranker      Ranking
	radiusM     int
	rankTimeout time.Duration
}

// Options tunes agent defaults. Zero values fall back to production defaults.
type Options struct {
	DefaultRadiusM int
	RankTimeout    time.Duration
}

// New builds an Agent over a place searcher and a ranker.
func New(search places.Searcher, ranking Ranking, opts Options) *Agent {
	radius := opts.DefaultRadiusM
	if radius <= 0 {
		radius = defaultRadiusM
	}
	timeout := opts.RankTimeout
	if timeout <= 0 {
		timeout = defaultRankTimeout
	}
	return &Agent{
		search:      search,
		ranker:      ranking,
		radiusM:     radius,
		rankTimeout: timeout,
	}
}

// Request asks for venue recommendations in one category. Position is the
// 1-based sequence slot, 0 when the pick is not part of a course. Exclude is
// the caller's snapshot of taken identity keys.
type Request struct {
	Category category.Category
	Location *geo.Point
	RadiusM  int
	Position int
	Exclude  model.KeySet
	State    *model.State
}

// Recommend returns ranked venue candidates for the request's category, best
// first, each annotated with the category and sequence position. Search and
// ranking failures surface as an error; callers treat that as an empty pick
// for the slot.
func (a *Agent) Recommend(ctx context.Context, req Request) ([]model.POI, error) {
	location := a.resolveLocation(req)
	radius := a.resolveRadius(req)

	raw, err := a.search.SearchText(ctx, places.SearchRequest{
		Query:    category.SearchQuery(req.Category),
		Location: location,
		RadiusM:  radius,
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		raw, err = a.searchNearby(ctx, req.Category, location, radius)
		if err != nil {
			return nil, err
		}
	}
	if len(raw) == 0 {
		zap.L().Info("agent: no places found",
			zap.String("category", string(req.Category)),
		)
		return nil, nil
	}

	// Providers occasionally return venues outside the bias circle.
	inRadius := raw[:0:0]
	for _, p := range raw {
		if geo.HaversineM(location, p.Point()) <= float64(radius) {
			inRadius = append(inRadius, p)
		}
	}

	candidates := places.Simplify(inRadius)
	filtered := excludeTaken(candidates, req.Category, req.Exclude)
	if len(filtered) == 0 && len(candidates) > 0 {
		// Every candidate is already taken. Hand the full set to the ranker
		// instead of starving the category.
		zap.L().Info("agent: exclusion emptied candidates, using unfiltered set",
			zap.String("category", string(req.Category)),
			zap.Int("candidates", len(candidates)),
		)
		filtered = candidates
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	rankCtx, cancel := context.WithTimeout(ctx, a.rankTimeout)
	defer cancel()

	_, pois, err := a.ranker.RankPOIs(rankCtx, ranker.RankInput{
		Category:   req.Category,
		Candidates: filtered,
		State:      req.State,
	})
	if err != nil {
		return nil, err
	}

	if req.Position > 0 {
		for i := range pois {
			pois[i].Seq = req.Position
		}
	}
	return pois, nil
}

// searchNearby retries an empty text search as a structured search over the
// category's place types. Categories without a type mapping stay text-only.
func (a *Agent) searchNearby(ctx context.Context, cat category.Category, location geo.Point, radius int) ([]places.Place, error) {
	types := category.PlaceTypes(cat)
	if len(types) == 0 {
		return nil, nil
	}
	zap.L().Info("agent: text search empty, falling back to nearby search",
		zap.String("category", string(cat)),
		zap.Strings("types", types),
	)
	return a.search.SearchNearby(ctx, places.NearbyRequest{
		Types:    types,
		Location: location,
		RadiusM:  radius,
	})
}

func (a *Agent) resolveLocation(req Request) geo.Point {
	if req.Location != nil {
		return *req.Location
	}
	if req.State != nil && req.State.Choice.Start != [2]float64{} {
		return req.State.Choice.StartPoint()
	}
	zap.L().Warn("agent: no start coordinate, using fallback location")
	return fallbackLocation
}

func (a *Agent) resolveRadius(req Request) int {
	if req.RadiusM > 0 {
		return req.RadiusM
	}
	if req.State != nil && req.State.Choice.RadiusM > 0 {
		return req.State.Choice.RadiusM
	}
	return a.radiusM
}

func excludeTaken(candidates []places.Candidate, cat category.Category, taken model.KeySet) []places.Candidate {
	if len(taken) == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if taken.Contains(model.POI{Name: c.Name, Category: string(cat)}) {
			continue
		}
		out = append(out, c)
	}
	return out
}
