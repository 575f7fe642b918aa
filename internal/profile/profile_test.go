package profile

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursemoa/reco-api/internal/resilience"
)

func TestRecommendationData(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"name":"a"},"partner":{"name":"b"},"couple":{"months":12}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	require.NoError(t, err)

	bundle, err := c.RecommendationData(context.Background(), "couple-42", "Bearer tok")
	require.NoError(t, err)

	assert.Equal(t, "/api/couples/couple-42/recommendation-data", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.JSONEq(t, `{"name":"a"}`, string(bundle.User))
	assert.JSONEq(t, `{"name":"b"}`, string(bundle.Partner))
	assert.JSONEq(t, `{"months":12}`, string(bundle.Couple))
}

func TestRecommendationDataStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden couple", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	require.NoError(t, err)

	_, err = c.RecommendationData(context.Background(), "couple-42", "Bearer tok")
	require.Error(t, err)

	var statusErr *resilience.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "auth", statusErr.Provider)
}

func TestRecommendationDataCapsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write(bytes.Repeat([]byte("x"), 3<<20))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	require.NoError(t, err)

	_, err = c.RecommendationData(context.Background(), "couple-42", "")
	require.Error(t, err)

	var statusErr *resilience.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.LessOrEqual(t, len(statusErr.Body), 1<<20)
}

func TestRecommendationDataConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, err := New(srv.URL, Options{})
	require.NoError(t, err)

	_, err = c.RecommendationData(context.Background(), "couple-42", "")
	require.Error(t, err)

	var statusErr *resilience.StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestRecommendationDataRequiresCoupleID(t *testing.T) {
	c, err := New("http://auth.local", Options{})
	require.NoError(t, err)

	_, err = c.RecommendationData(context.Background(), "", "Bearer tok")
	assert.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("", Options{})
	assert.Error(t, err)
}
