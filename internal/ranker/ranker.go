// Package ranker turns place-search candidates into ranked venue
// recommendations and orders allowed categories into a course sequence,
// both via Claude with a strict JSON output contract.
package ranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/category"
	"github.com/coursemoa/reco-api/internal/config"
	"github.com/coursemoa/reco-api/internal/geo"
	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/places"
	"github.com/coursemoa/reco-api/pkg/anthropic"
)

const rankSystemPrompt = `You are a date-course curator for couples in Korea. From the candidate venues provided, pick and rank the ones that best fit the couple's profiles, the trigger conditions and the question. Respond with a single valid JSON object and nothing else:
{"explain": "<one short paragraph in Korean explaining the picks>", "data": [{"name": "...", "category": "...", "lat": 0.0, "lng": 0.0, "indoor": true, "price_level": 1, "open_hours": {"mon": "...", "tue": "...", "wed": "...", "thu": "...", "fri": "...", "sat": "...", "sun": "..."}, "alcohol": 0, "mood_tag": "...", "food_tag": ["..."], "rating_avg": 4.5, "link": "..."}]}
Only use venues from the candidate list. Keep name, lat, lng and link exactly as given. Order data from best fit to worst.`

const rankUserPrompt = `Category: %s
Question: %s

User profile:
%s

Partner profile:
%s

Couple profile:
%s

Trigger:
%s

Candidate venues:
%s`

const planSystemPrompt = `You are a date-course planner. Given the categories available today and the couple's context, order a subset of them into a natural course sequence (typically 3 to 5 stops). Respond with a single valid JSON array of category tags and nothing else, for example: ["cafe", "walk", "restaurant"]. Only use tags from the available list; a tag may appear more than once when it suits the course.`

const planUserPrompt = `Available categories: %s
Question: %s

User profile:
%s

Partner profile:
%s

Couple profile:
%s

Trigger:
%s`

// Ranker calls the LLM for per-category ranking and sequence planning.
type Ranker struct {
	ai  anthropic.Client
	cfg config.AnthropicConfig
}

// New builds a Ranker on the given client.
func New(ai anthropic.Client, cfg config.AnthropicConfig) *Ranker {
	return &Ranker{ai: ai, cfg: cfg}
}

// RankInput is the per-category ranking request.
type RankInput struct {
	Category   category.Category
	Candidates []places.Candidate
	State      *model.State
}

// agentResponse is the top-level schema the model must produce.
type agentResponse struct {
	Explain string      `json:"explain"`
	Data    []model.POI `json:"data"`
}

// RankPOIs asks the model to pick and order venues from the candidates.
// Returned POIs carry the requested category and normalized open hours;
// candidates the model invented or mangled are dropped.
func (r *Ranker) RankPOIs(ctx context.Context, in RankInput) (string, []model.POI, error) {
	if len(in.Candidates) == 0 {
		return "", nil, nil
	}

	poiData, err := json.Marshal(in.Candidates)
	if err != nil {
		return "", nil, eris.Wrap(err, "ranker: marshal candidates")
	}

	prompt := fmt.Sprintf(rankUserPrompt,
		in.Category,
		in.State.Query,
		profileJSON(in.State.Profiles.User),
		profileJSON(in.State.Profiles.Partner),
		profileJSON(in.State.Profiles.Couple),
		triggerJSON(in.State.Choice),
		string(poiData),
	)

	resp, err := r.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.Model,
		MaxTokens: r.maxTokens(),
		System:    rankSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", nil, eris.Wrapf(err, "ranker: rank %s", in.Category)
	}
	resp.Usage.Log(r.cfg.Model, "rank:"+string(in.Category))

	var parsed agentResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &parsed); err != nil {
		return "", nil, eris.Wrapf(err, "ranker: parse %s response", in.Category)
	}

	out := make([]model.POI, 0, len(parsed.Data))
	for _, poi := range parsed.Data {
		if !validPOI(poi) {
			zap.L().Warn("ranker: dropping invalid candidate",
				zap.String("category", string(in.Category)),
				zap.String("name", poi.Name),
			)
			continue
		}
		poi.Category = string(in.Category)
		poi.OpenHours = model.NormalizeOpenHours(poi.OpenHours)
		out = append(out, poi)
	}

	return parsed.Explain, out, nil
}

// PlanInput is the sequence-planning request.
type PlanInput struct {
	Allowed []category.Category
	State   *model.State
}

// PlanSequence orders allowed categories into a course. Tags the model
// returns that are unknown or not in the allowed set are dropped.
func (r *Ranker) PlanSequence(ctx context.Context, in PlanInput) ([]category.Category, error) {
	if len(in.Allowed) == 0 {
		return nil, nil
	}

	allowed, err := json.Marshal(in.Allowed)
	if err != nil {
		return nil, eris.Wrap(err, "ranker: marshal allowed categories")
	}

	prompt := fmt.Sprintf(planUserPrompt,
		string(allowed),
		in.State.Query,
		profileJSON(in.State.Profiles.User),
		profileJSON(in.State.Profiles.Partner),
		profileJSON(in.State.Profiles.Couple),
		triggerJSON(in.State.Choice),
	)

	resp, err := r.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.Model,
		MaxTokens: 256,
		System:    planSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "ranker: plan sequence")
	}
	resp.Usage.Log(r.cfg.Model, "plan")

	var tags []string
	if err := json.Unmarshal([]byte(cleanJSONArray(resp.Text())), &tags); err != nil {
		return nil, eris.Wrap(err, "ranker: parse sequence response")
	}

	allowedSet := category.SetOf(in.Allowed...)
	var seq []category.Category
	for _, tag := range tags {
		c := category.Normalize(tag)
		if !category.Valid(c) || !allowedSet.Contains(c) {
			zap.L().Warn("ranker: dropping sequence tag outside allowed set",
				zap.String("tag", tag),
			)
			continue
		}
		seq = append(seq, c)
	}
	return seq, nil
}

func (r *Ranker) maxTokens() int64 {
	if r.cfg.MaxTokens > 0 {
		return int64(r.cfg.MaxTokens)
	}
	return 4096
}

// validPOI rejects records the model fabricated without usable identity or
// location.
func validPOI(p model.POI) bool {
	if strings.TrimSpace(p.Name) == "" {
		return false
	}
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return geo.Point{Lat: p.Lat, Lon: p.Lng}.Validate() == nil
}

func profileJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func triggerJSON(choice model.UserChoice) string {
	b, err := json.Marshal(choice)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = stripFences(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// cleanJSONArray is cleanJSON for top-level arrays.
func cleanJSONArray(text string) string {
	text = stripFences(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
