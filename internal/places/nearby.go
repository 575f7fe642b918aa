package places

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/geo"
	"github.com/coursemoa/reco-api/internal/resilience"
)

const searchNearbyPath = "/v1/places:searchNearby"

// nearbyDefaultFields is the default mask for nearby search. The endpoint does
// not paginate, so there is no page token entry.
var nearbyDefaultFields = []string{
	"id", "displayName", "formattedAddress", "location",
	"primaryType", "types",
	"rating", "userRatingCount", "priceLevel",
}

// NearbyRequest describes one structured nearby search: place types inside a
// hard radius circle instead of a free-text query with a soft bias.
type NearbyRequest struct {
	Types      []string
	Location   geo.Point
	RadiusM    int
	MaxResults int
	Language   string
	Fields     []string
}

type searchNearbyBody struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LanguageCode        string   `json:"languageCode"`
	LocationRestriction struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type searchNearbyResponse struct {
	Places []Place `json:"places"`
}

// SearchNearby runs a structured nearby search. Unlike text search the result
// set is a single page capped by maxResultCount, and the circle is a
// restriction rather than a bias.
func (c *Client) SearchNearby(ctx context.Context, req NearbyRequest) ([]Place, error) {
	if len(req.Types) == 0 {
		return nil, eris.New("places: nearby search needs at least one included type")
	}
	if err := req.Location.Validate(); err != nil {
		return nil, eris.Wrap(err, "places: nearby search center")
	}

	lang := req.Language
	if lang == "" {
		lang = c.language
	}
	maxResults := req.MaxResults
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 20
	}
	radius := req.RadiusM
	if radius <= 0 {
		radius = 1500
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = nearbyDefaultFields
	}

	body := searchNearbyBody{
		IncludedTypes:  req.Types,
		MaxResultCount: maxResults,
		LanguageCode:   lang,
	}
	body.LocationRestriction.Circle.Center.Latitude = req.Location.Lat
	body.LocationRestriction.Circle.Center.Longitude = req.Location.Lon
	body.LocationRestriction.Circle.Radius = float64(radius)

	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, searchNearbyPath, body, BuildFieldMask(fields))
	})
	if err != nil {
		return nil, err
	}

	var parsed searchNearbyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, eris.Wrap(err, "places: decode response")
	}

	zap.L().Debug("places: nearby search complete",
		zap.Strings("types", req.Types),
		zap.Int("results", len(parsed.Places)),
	)
	return parsed.Places, nil
}
