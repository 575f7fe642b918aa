// Package model defines the request-scoped data types threaded through the
// recommendation pipeline.
package model

// OpenHoursUnknown is the sentinel for weekdays the provider reported no
// hours for. The seven keys are always present after normalization.
const OpenHoursUnknown = "unknown"

// Weekdays lists the open-hours keys in week order.
var Weekdays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// POI is a venue candidate flowing between the place search, the ranker and
// the orchestrators. Seq is 1-based sequence position, 0 while unassigned;
// it is set by the orchestrator, never by the search provider.
type POI struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	Indoor     *bool             `json:"indoor,omitempty"`
	PriceLevel *int              `json:"price_level,omitempty"`
	OpenHours  map[string]string `json:"open_hours,omitempty"`
	Alcohol    *int              `json:"alcohol,omitempty"`
	MoodTag    string            `json:"mood_tag,omitempty"`
	FoodTag    []string          `json:"food_tag,omitempty"`
	RatingAvg  *float64          `json:"rating_avg,omitempty"`
	Link       string            `json:"link,omitempty"`
	Seq        int               `json:"seq,omitempty"`
}

// NormalizeOpenHours returns a map with exactly the seven weekday keys,
// copying known days and filling missing ones with the sentinel. Unrecognized
// keys from the input are dropped.
func NormalizeOpenHours(in map[string]string) map[string]string {
	out := make(map[string]string, len(Weekdays))
	for _, day := range Weekdays {
		if v, ok := in[day]; ok && v != "" {
			out[day] = v
		} else {
			out[day] = OpenHoursUnknown
		}
	}
	return out
}
