package weather

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/resilience"
)

const vilageFcstPath = "/getVilageFcst"

// Lambert conformal conic parameters of the KMA village forecast grid.
const (
	kmaEarthRadiusKM = 6371.00877
	kmaGridKM        = 5.0
	kmaSlat1Deg      = 30.0
	kmaSlat2Deg      = 60.0
	kmaOlonDeg       = 126.0
	kmaOlatDeg       = 38.0
	kmaXO            = 43
	kmaYO            = 136
)

// KMA queries the Korea Meteorological Administration village forecast. The
// API takes grid cell coordinates rather than lat/lon, issues forecasts on a
// local-time schedule, and returns one record per category per hour.
type KMA struct {
	serviceKey string
	baseURL    string
	httpClient *http.Client
	thresholds Thresholds
	loc        *time.Location
	retry      resilience.RetryConfig
}

// KMAOptions configures the client. Location is the timezone forecast
// timestamps are issued in; it defaults to Asia/Seoul.
type KMAOptions struct {
	ServiceKey string
	BaseURL    string
	Timeout    time.Duration
	Thresholds Thresholds
	Location   *time.Location
}

// NewKMA creates a village forecast provider.
func NewKMA(opts KMAOptions) (*KMA, error) {
	if opts.ServiceKey == "" {
		return nil, eris.New("weather: missing KMA service key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 7 * time.Second
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	loc := opts.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("Asia/Seoul")
		if err != nil {
			return nil, eris.Wrap(err, "weather: load KMA timezone")
		}
	}
	return &KMA{
		serviceKey: opts.ServiceKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		thresholds: opts.Thresholds,
		loc:        loc,
		retry:      resilience.DefaultRetryConfig(),
	}, nil
}

// latLonToGrid projects a coordinate onto the KMA forecast grid.
func latLonToGrid(lat, lon float64) (nx, ny int) {
	degrad := math.Pi / 180.0

	re := kmaEarthRadiusKM / kmaGridKM
	slat1 := kmaSlat1Deg * degrad
	slat2 := kmaSlat2Deg * degrad
	olon := kmaOlonDeg * degrad
	olat := kmaOlatDeg * degrad

	sn := math.Tan(math.Pi*0.25+slat2*0.5) / math.Tan(math.Pi*0.25+slat1*0.5)
	sn = math.Log(math.Cos(slat1)/math.Cos(slat2)) / math.Log(sn)
	sf := math.Tan(math.Pi*0.25 + slat1*0.5)
	sf = math.Pow(sf, sn) * math.Cos(slat1) / sn
	ro := math.Tan(math.Pi*0.25 + olat*0.5)
	ro = re * sf / math.Pow(ro, sn)

	ra := math.Tan(math.Pi*0.25 + lat*degrad*0.5)
	ra = re * sf / math.Pow(ra, sn)
	theta := lon*degrad - olon
	if theta > math.Pi {
		theta -= 2.0 * math.Pi
	}
	if theta < -math.Pi {
		theta += 2.0 * math.Pi
	}
	theta *= sn

	nx = int(math.Floor(ra*math.Sin(theta) + kmaXO + 0.5))
	ny = int(math.Floor(ro - ra*math.Cos(theta) + kmaYO + 0.5))
	return nx, ny
}

type kmaResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []kmaItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type kmaItem struct {
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	Category  string `json:"category"`
	FcstValue string `json:"fcstValue"`
}

func (c *KMA) fetch(ctx context.Context, nx, ny int, base time.Time) ([]Slot, error) {
	q := url.Values{}
	q.Set("serviceKey", c.serviceKey)
	q.Set("pageNo", "1")
	q.Set("numOfRows", "1000")
	q.Set("dataType", "JSON")
	q.Set("base_date", base.Format("20060102"))
	q.Set("base_time", base.Format("15")+"00")
	q.Set("nx", strconv.Itoa(nx))
	q.Set("ny", strconv.Itoa(ny))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+vilageFcstPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "weather: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "weather: forecast request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "weather: read forecast body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{
			Provider:   "kma",
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 200),
		}
	}

	var parsed kmaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "weather: decode forecast")
	}
	if code := parsed.Response.Header.ResultCode; code != "" && code != "00" {
		return nil, eris.Errorf("weather: KMA result %s: %s", code, parsed.Response.Header.ResultMsg)
	}

	return c.collect(parsed.Response.Body.Items.Item), nil
}

// collect folds per-category forecast records into hourly slots.
func (c *KMA) collect(items []kmaItem) []Slot {
	byInstant := make(map[string]*Slot)
	for _, it := range items {
		key := it.FcstDate + it.FcstTime
		slot, ok := byInstant[key]
		if !ok {
			start, err := time.ParseInLocation("200601021504", key, c.loc)
			if err != nil {
				continue
			}
			slot = &Slot{Start: start.UTC(), Duration: time.Hour}
			byInstant[key] = slot
		}

		switch it.Category {
		case "TMP":
			if v, err := strconv.ParseFloat(it.FcstValue, 64); err == nil {
				slot.TempC = v
			}
		case "REH":
			if v, err := strconv.Atoi(it.FcstValue); err == nil {
				slot.Humidity = v
			}
		case "PTY":
			// Any non-zero precipitation type counts as rain.
			if it.FcstValue != "0" {
				slot.Condition = "Rain"
			}
		case "SKY":
			if slot.Condition == "" {
				switch it.FcstValue {
				case "1":
					slot.Condition = "Clear"
				case "3", "4":
					slot.Condition = "Clouds"
				}
			}
		}
	}

	slots := make([]Slot, 0, len(byInstant))
	for _, s := range byInstant {
		slots = append(slots, *s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// WindowSummary fetches the village forecast covering the window and
// aggregates the hourly slots overlapping [startUTC, endUTC). The base
// issuance time is the hour before the window start, in local forecast time.
func (c *KMA) WindowSummary(ctx context.Context, lat, lon float64, startUTC, endUTC time.Time) (Summary, error) {
	nx, ny := latLonToGrid(lat, lon)
	base := startUTC.In(c.loc).Add(-time.Hour)

	slots, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Slot, error) {
		return c.fetch(ctx, nx, ny, base)
	})
	if err != nil {
		return Summary{}, err
	}

	summary := Summarize(slots, startUTC, endUTC, c.thresholds)
	zap.L().Debug("weather: window summarized",
		zap.Int("nx", nx),
		zap.Int("ny", ny),
		zap.Int("samples", summary.Samples),
		zap.Bool("raining", summary.RainingAny),
	)
	return summary, nil
}
