// Package places is a client for the Google Places API (v1) text search,
// with field-mask construction, token pagination and rate limiting.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/coursemoa/reco-api/internal/geo"
	"github.com/coursemoa/reco-api/internal/resilience"
)

const searchTextPath = "/v1/places:searchText"

// Place is a single provider record, shaped after the v1 response.
type Place struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	PriceLevel          string  `json:"priceLevel"`
	Rating              float64 `json:"rating"`
	UserRatingCount     int     `json:"userRatingCount"`
	PrimaryType         string  `json:"primaryType"`
	Types               []string `json:"types"`
	RegularOpeningHours struct {
		WeekdayDescriptions []string `json:"weekdayDescriptions"`
	} `json:"regularOpeningHours"`
	GoogleMapsURI string `json:"googleMapsUri"`
}

// Point returns the place's coordinate.
func (p Place) Point() geo.Point {
	return geo.Point{Lat: p.Location.Latitude, Lon: p.Location.Longitude}
}

// SearchRequest describes one text search.
type SearchRequest struct {
	Query    string
	Location geo.Point
	RadiusM  int
	Language string
	Fields   []string
}

// Searcher is the provider interface the agent consumes. Text search is the
// primary mode; nearby search is the structured alternative over place types.
type Searcher interface {
	SearchText(ctx context.Context, req SearchRequest) ([]Place, error)
	SearchNearby(ctx context.Context, req NearbyRequest) ([]Place, error)
}

// Client talks to the Places API over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	pageDelay  time.Duration
	maxPages   int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	Language   string
	PageDelay  time.Duration
	MaxPages   int
	RatePerSec float64
}

// New creates a Places client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, eris.New("places: missing API key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://places.googleapis.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Language == "" {
		opts.Language = "ko"
	}
	if opts.PageDelay == 0 {
		// The provider activates next-page tokens with a short latency;
		// following a token immediately returns an empty page.
		opts.PageDelay = 2 * time.Second
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	// Fractional rates truncate to a zero burst, which makes every Wait fail.
	burst := int(opts.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		language:   opts.Language,
		pageDelay:  opts.PageDelay,
		maxPages:   opts.MaxPages,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
		retry:      resilience.DefaultRetryConfig(),
	}, nil
}

type searchTextBody struct {
	TextQuery    string `json:"textQuery"`
	LanguageCode string `json:"languageCode"`
	PageToken    string `json:"pageToken,omitempty"`
	LocationBias *struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias,omitempty"`
}

type searchTextResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken"`
}

// SearchText runs a text search and follows pagination tokens up to the
// configured page cap, honoring the provider's inter-page delay.
func (c *Client) SearchText(ctx context.Context, req SearchRequest) ([]Place, error) {
	var all []Place
	token := ""

	for page := 0; page < c.maxPages; page++ {
		if page > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}

		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*searchTextResponse, error) {
			return c.searchPage(ctx, req, token)
		})
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Places...)
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}

	zap.L().Debug("places: text search complete",
		zap.String("query", req.Query),
		zap.Int("results", len(all)),
	)
	return all, nil
}

func (c *Client) searchPage(ctx context.Context, req SearchRequest, pageToken string) (*searchTextResponse, error) {
	lang := req.Language
	if lang == "" {
		lang = c.language
	}

	body := searchTextBody{
		TextQuery:    req.Query,
		LanguageCode: lang,
		PageToken:    pageToken,
	}
	if req.RadiusM > 0 {
		body.LocationBias = &struct {
			Circle struct {
				Center struct {
					Latitude  float64 `json:"latitude"`
					Longitude float64 `json:"longitude"`
				} `json:"center"`
				Radius float64 `json:"radius"`
			} `json:"circle"`
		}{}
		body.LocationBias.Circle.Center.Latitude = req.Location.Lat
		body.LocationBias.Circle.Center.Longitude = req.Location.Lon
		body.LocationBias.Circle.Radius = float64(req.RadiusM)
	}

	raw, err := c.post(ctx, searchTextPath, body, BuildFieldMask(req.Fields))
	if err != nil {
		return nil, err
	}

	var parsed searchTextResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, eris.Wrap(err, "places: decode response")
	}
	return &parsed, nil
}

// post sends one rate-limited API call and returns the raw response body.
func (c *Client) post(ctx context.Context, path string, body any, fieldMask string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limiter")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "places: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "places: search request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{
			Provider:   "places",
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), 300),
		}
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
