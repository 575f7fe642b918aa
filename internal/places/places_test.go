package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursemoa/reco-api/internal/geo"
	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/resilience"
)

func placeJSON(id, name string, lat, lng float64) map[string]any {
	return map[string]any{
		"id":               id,
		"displayName":      map[string]any{"text": name},
		"formattedAddress": "서울 송파구",
		"location":         map[string]any{"latitude": lat, "longitude": lng},
		"rating":           4.4,
		"userRatingCount":  120,
		"primaryType":      "cafe",
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Options{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		PageDelay: time.Millisecond,
		MaxPages:  3,
	})
	require.NoError(t, err)
	c.retry.InitialBackoff = time.Millisecond
	return c
}

func TestSearchTextSendsHeadersAndBias(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.displayName")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{placeJSON("p1", "A Cafe", 37.5, 127.1)},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.SearchText(context.Background(), SearchRequest{
		Query:    "카페",
		Location: geo.Point{Lat: 37.5, Lon: 127.1},
		RadiusM:  1500,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A Cafe", got[0].DisplayName.Text)

	assert.Equal(t, "카페", gotBody["textQuery"])
	assert.Equal(t, "ko", gotBody["languageCode"])
	bias := gotBody["locationBias"].(map[string]any)["circle"].(map[string]any)
	assert.Equal(t, 1500.0, bias["radius"])
	center := bias["center"].(map[string]any)
	assert.Equal(t, 37.5, center["latitude"])
	assert.Equal(t, 127.1, center["longitude"])
}

func TestSearchTextFollowsPagination(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		token, _ := body["pageToken"].(string)
		tokens = append(tokens, token)

		switch token {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"places":        []map[string]any{placeJSON("p1", "One", 37.5, 127.1)},
				"nextPageToken": "tok-2",
			})
		case "tok-2":
			json.NewEncoder(w).Encode(map[string]any{
				"places": []map[string]any{placeJSON("p2", "Two", 37.51, 127.11)},
			})
		default:
			t.Errorf("unexpected page token %q", token)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.SearchText(context.Background(), SearchRequest{Query: "카페"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"", "tok-2"}, tokens)
}

func TestSearchTextRespectsPageCap(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		// Always hand back another token; the cap must stop the loop.
		json.NewEncoder(w).Encode(map[string]any{
			"places":        []map[string]any{placeJSON("p", "X", 37.5, 127.1)},
			"nextPageToken": "more",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.SearchText(context.Background(), SearchRequest{Query: "카페"})
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Len(t, got, 3)
}

func TestSearchTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid field mask"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.SearchText(context.Background(), SearchRequest{Query: "카페"})
	require.Error(t, err)

	var se *resilience.StatusError
	require.True(t, eris.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "invalid field mask")
}

func TestSearchNearbySendsRestriction(t *testing.T) {
	var gotBody map[string]any
	var gotMask string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchNearby", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		gotMask = r.Header.Get("X-Goog-FieldMask")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{placeJSON("p1", "B Cafe", 37.5, 127.1)},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.SearchNearby(context.Background(), NearbyRequest{
		Types:    []string{"cafe", "coffee_shop"},
		Location: geo.Point{Lat: 37.5, Lon: 127.1},
		RadiusM:  800,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B Cafe", got[0].DisplayName.Text)

	assert.Equal(t, []any{"cafe", "coffee_shop"}, gotBody["includedTypes"])
	assert.Equal(t, 20.0, gotBody["maxResultCount"])
	assert.Equal(t, "ko", gotBody["languageCode"])
	circle := gotBody["locationRestriction"].(map[string]any)["circle"].(map[string]any)
	assert.Equal(t, 800.0, circle["radius"])
	center := circle["center"].(map[string]any)
	assert.Equal(t, 37.5, center["latitude"])
	assert.Equal(t, 127.1, center["longitude"])

	// Nearby responses do not paginate; the mask carries no page token.
	assert.Contains(t, gotMask, "places.displayName")
	assert.NotContains(t, gotMask, "nextPageToken")
}

func TestSearchNearbyRequiresTypes(t *testing.T) {
	c := newTestClient(t, "http://places.local")
	_, err := c.SearchNearby(context.Background(), NearbyRequest{
		Location: geo.Point{Lat: 37.5, Lon: 127.1},
	})
	assert.Error(t, err)
}

func TestSearchNearbyStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad type"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.SearchNearby(context.Background(), NearbyRequest{
		Types:    []string{"no_such_type"},
		Location: geo.Point{Lat: 37.5, Lon: 127.1},
	})
	require.Error(t, err)

	var se *resilience.StatusError
	require.True(t, eris.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNewClampsFractionalRateBurst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{placeJSON("p1", "A Cafe", 37.5, 127.1)},
		})
	}))
	defer srv.Close()

	c, err := New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RatePerSec: 0.5,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.limiter.Burst(), 1)

	got, err := c.SearchText(context.Background(), SearchRequest{Query: "카페"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBuildFieldMask(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{"prefixes bare fields", []string{"id", "displayName"}, "places.id,places.displayName"},
		{"keeps prefixed fields", []string{"places.rating"}, "places.rating"},
		{"top-level token untouched", []string{"id", "nextPageToken"}, "places.id,nextPageToken"},
		{"wildcard wins", []string{"id", "*", "rating"}, "*"},
		{"alias corrected", []string{"openingHours"}, "places.regularOpeningHours"},
		{"dedup", []string{"id", "places.id"}, "places.id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFieldMask(tt.fields))
		})
	}

	// Default mask includes the pagination token at top level.
	def := BuildFieldMask(nil)
	assert.Contains(t, def, "places.regularOpeningHours")
	assert.Contains(t, def, "nextPageToken")
	assert.NotContains(t, def, "places.nextPageToken")
}

func TestSimplify(t *testing.T) {
	var p Place
	p.ID = "p1"
	p.DisplayName.Text = "한강공원"
	p.FormattedAddress = "서울 광진구"
	p.Location.Latitude = 37.53
	p.Location.Longitude = 127.07
	p.Rating = 4.6
	p.UserRatingCount = 2400
	p.PrimaryType = "park"
	p.RegularOpeningHours.WeekdayDescriptions = []string{
		"월요일: 24시간 영업",
		"화요일: 24시간 영업",
	}

	got := Simplify([]Place{p})
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "한강공원", c.Name)
	assert.Equal(t, 37.53, c.Lat)
	assert.Equal(t, 127.07, c.Lng)

	// Open hours normalized to a full week with sentinels.
	require.Len(t, c.OpenHours, 7)
	assert.Equal(t, "24시간 영업", c.OpenHours["mon"])
	assert.Equal(t, "24시간 영업", c.OpenHours["tue"])
	assert.Equal(t, model.OpenHoursUnknown, c.OpenHours["sun"])
}

func TestSimplifyNoHours(t *testing.T) {
	var p Place
	p.DisplayName.Text = "X"
	got := Simplify([]Place{p})
	require.Len(t, got, 1)
	assert.Nil(t, got[0].OpenHours)
}
