package places

import (
	"strings"

	"github.com/coursemoa/reco-api/internal/model"
)

// Candidate is the compact record handed to the LLM ranker. Provider payloads
// carry far more than the ranker needs; trimming keeps prompts small.
type Candidate struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Address     string            `json:"address,omitempty"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	PriceLevel  string            `json:"price_level,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	ReviewCount int               `json:"review_count,omitempty"`
	Type        string            `json:"type,omitempty"`
	OpenHours   map[string]string `json:"open_hours,omitempty"`
	Link        string            `json:"link,omitempty"`
}

// Simplify maps provider records to ranker candidates.
func Simplify(placesIn []Place) []Candidate {
	out := make([]Candidate, 0, len(placesIn))
	for _, p := range placesIn {
		out = append(out, Candidate{
			ID:          p.ID,
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddress,
			Lat:         p.Location.Latitude,
			Lng:         p.Location.Longitude,
			PriceLevel:  p.PriceLevel,
			Rating:      p.Rating,
			ReviewCount: p.UserRatingCount,
			Type:        p.PrimaryType,
			OpenHours:   weekdayHours(p.RegularOpeningHours.WeekdayDescriptions),
			Link:        p.GoogleMapsURI,
		})
	}
	return out
}

// weekdayHours converts the provider's weekday descriptions into the seven-key
// open-hours map. Descriptions arrive in Monday-first order regardless of
// response language, so mapping is positional; the text after the day label is
// kept verbatim.
func weekdayHours(descriptions []string) map[string]string {
	if len(descriptions) == 0 {
		return nil
	}
	partial := make(map[string]string, len(model.Weekdays))
	for i, day := range model.Weekdays {
		if i >= len(descriptions) {
			break
		}
		desc := descriptions[i]
		if _, after, found := strings.Cut(desc, ": "); found {
			partial[day] = after
		} else {
			partial[day] = desc
		}
	}
	return model.NormalizeOpenHours(partial)
}
