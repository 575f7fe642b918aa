// Package orchestrator fans per-category recommendation work out across a
// course sequence and handles targeted rerolls of individual positions.
package orchestrator

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coursemoa/reco-api/internal/agent"
	"github.com/coursemoa/reco-api/internal/category"
	"github.com/coursemoa/reco-api/internal/model"
)

const defaultMaxConcurrent = 4

// Recommender is the slice of the per-category agent the orchestrator needs.
type Recommender interface {
	Recommend(ctx context.Context, req agent.Request) ([]model.POI, error)
}

// Runner executes a planned category sequence.
type Runner struct {
	agent         Recommender
	maxConcurrent int
}

// NewRunner builds a Runner. maxConcurrent bounds how many categories run at
// once; values <= 0 use the default of 4.
func NewRunner(rec Recommender, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Runner{agent: rec, maxConcurrent: maxConcurrent}
}

// position is one slot of the course: its 0-based index in the sequence and
// its category.
type position struct {
	idx int
	cat category.Category
}

// Run picks one venue per sequence position. Different categories run
// concurrently; positions sharing a category run serially so the second call
// always sees the first call's pick in its exclusion set. Positions whose
// agent failed or returned nothing are omitted; gaps in Seq are fine.
// An empty sequence returns an empty list and touches nothing.
func (r *Runner) Run(ctx context.Context, seq []category.Category, state *model.State) []model.POI {
	out := []model.POI{}
	if len(seq) == 0 {
		return out
	}

	// Group positions by category, keeping each position's original index
	// and the order groups first appear in the sequence.
	groups := make(map[category.Category][]position)
	var groupOrder []category.Category
	for idx, cat := range seq {
		if _, ok := groups[cat]; !ok {
			groupOrder = append(groupOrder, cat)
		}
		groups[cat] = append(groups[cat], position{idx: idx, cat: cat})
	}

	// taken is the shared accumulator: everything excluded up front plus
	// every pick committed so far. All access goes through mu; the
	// check-then-add around each pick must be atomic or two concurrent
	// categories can race past the same exclusion check.
	var mu sync.Mutex
	taken := state.ExclusionSet()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for _, cat := range groupOrder {
		group := groups[cat]
		g.Go(func() error {
			for _, pos := range group {
				mu.Lock()
				snapshot := taken.Clone()
				mu.Unlock()

				pois, err := r.agent.Recommend(gCtx, agent.Request{
					Category: pos.cat,
					Position: pos.idx + 1,
					Exclude:  snapshot,
					State:    state,
				})
				if err != nil {
					zap.L().Warn("orchestrator: position failed",
						zap.String("category", string(pos.cat)),
						zap.Int("seq", pos.idx+1),
						zap.Error(err),
					)
					continue
				}

				mu.Lock()
				for _, poi := range pois {
					if taken.Contains(poi) {
						continue
					}
					taken.Add(poi)
					poi.Seq = pos.idx + 1
					out = append(out, poi)
					state.AlreadySelected = append(state.AlreadySelected, poi)
					break
				}
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	state.Recommendations = out
	return out
}

// Reroll attempts one replacement per excluded position. Unlike Run, every
// position launches concurrently against the same initial exclusion snapshot
// (previous course plus the rejected venues); dedup happens afterwards by
// walking completed candidate lists in request order, where the first venue
// whose key is still free wins and extends the running set. Positions with
// no usable candidate stay unresolved.
func (r *Runner) Reroll(ctx context.Context, excludePOIs, previous []model.POI, state *model.State) []model.POI {
	rerolled := []model.POI{}
	if len(excludePOIs) == 0 {
		return rerolled
	}

	taken := model.NewKeySet(previous, excludePOIs)
	candidates := make([][]model.POI, len(excludePOIs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for i, poi := range excludePOIs {
		cat := category.Normalize(poi.Category)
		if !category.Valid(cat) {
			zap.L().Warn("orchestrator: reroll skipping unknown category",
				zap.String("category", poi.Category),
				zap.Int("seq", poi.Seq),
			)
			continue
		}
		g.Go(func() error {
			pois, err := r.agent.Recommend(gCtx, agent.Request{
				Category: cat,
				Position: poi.Seq,
				Exclude:  taken,
				State:    state,
			})
			if err != nil {
				zap.L().Warn("orchestrator: reroll position failed",
					zap.String("category", string(cat)),
					zap.Int("seq", poi.Seq),
					zap.Error(err),
				)
				return nil
			}
			candidates[i] = pois
			return nil
		})
	}

	_ = g.Wait()

	for i, poi := range excludePOIs {
		for _, cand := range candidates[i] {
			if taken.Contains(cand) {
				continue
			}
			taken.Add(cand)
			cand.Seq = poi.Seq
			rerolled = append(rerolled, cand)
			break
		}
	}

	zap.L().Info("orchestrator: reroll finished",
		zap.Int("requested", len(excludePOIs)),
		zap.Int("replaced", len(rerolled)),
	)
	return rerolled
}

// Merge substitutes rerolled venues into the previous course by Seq.
// Positions without a replacement keep their previous venue. The result is
// ordered by Seq.
func Merge(previous, rerolled []model.POI) []model.POI {
	bySeq := make(map[int]model.POI, len(rerolled))
	for _, poi := range rerolled {
		bySeq[poi.Seq] = poi
	}

	out := make([]model.POI, 0, len(previous))
	for _, poi := range previous {
		if repl, ok := bySeq[poi.Seq]; ok {
			out = append(out, repl)
			continue
		}
		out = append(out, poi)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
