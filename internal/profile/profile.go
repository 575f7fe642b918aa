// Package profile fetches couple recommendation context from the upstream
// auth service.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coursemoa/reco-api/internal/model"
	"github.com/coursemoa/reco-api/internal/resilience"
)

// Client calls the auth service's recommendation-data endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Options configures the client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New builds a profile client for the given auth-service base URL.
func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, eris.New("profile: base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// RecommendationData fetches the user/partner/couple blobs for a couple. The
// caller's Authorization header value is passed through unchanged. Non-200
// responses come back as a resilience.StatusError so callers can tell an
// upstream rejection from a connection failure; this layer never retries.
func (c *Client) RecommendationData(ctx context.Context, coupleID, authorization string) (*model.ProfileBundle, error) {
	if coupleID == "" {
		return nil, eris.New("profile: couple ID is required")
	}

	url := fmt.Sprintf("%s/api/couples/%s/recommendation-data", c.baseURL, coupleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "profile: build request")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "profile: fetch recommendation data")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "profile: read response")
	}

	if resp.StatusCode != http.StatusOK {
		zap.L().Warn("profile: auth service rejected request",
			zap.String("couple_id", coupleID),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &resilience.StatusError{
			Provider:   "auth",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var bundle model.ProfileBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, eris.Wrap(err, "profile: decode response")
	}
	return &bundle, nil
}
