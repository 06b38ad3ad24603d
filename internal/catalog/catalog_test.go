package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomtune/server/internal/domain"
)

func TestHTTPResolverPrefersQuality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/song/abc/url", r.URL.Path)
		json.NewEncoder(w).Encode(urlResponse{URL: "https://cdn/abc?q=" + r.URL.Query().Get("quality")})
	}))
	defer srv.Close()

	r := NewHTTPResolver(&Config{BaseURL: srv.URL, Quality: "flac"}, srv.Client())
	u, err := r.Resolve(context.Background(), domain.Song{ID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/abc?q=flac", u)
}

func TestHTTPResolverFallsBackToDefaultQuality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("quality") != "" {
			json.NewEncoder(w).Encode(urlResponse{})
			return
		}
		json.NewEncoder(w).Encode(urlResponse{URL: "https://cdn/abc.mp3"})
	}))
	defer srv.Close()

	r := NewHTTPResolver(&Config{BaseURL: srv.URL, Quality: "flac"}, srv.Client())
	u, err := r.Resolve(context.Background(), domain.Song{ID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/abc.mp3", u)
}

func TestHTTPResolverNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewHTTPResolver(&Config{BaseURL: srv.URL}, srv.Client())
	_, err := r.Resolve(context.Background(), domain.Song{ID: "abc"})
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestHTTPResolverNoURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":""}`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(&Config{BaseURL: srv.URL}, srv.Client())
	_, err := r.Resolve(context.Background(), domain.Song{ID: "abc"})
	assert.ErrorIs(t, err, ErrNoStreamURL)
}

func TestResolverFunc(t *testing.T) {
	var r Resolver = ResolverFunc(func(_ context.Context, s domain.Song) (string, error) {
		return "https://x/" + s.ID, nil
	})
	u, err := r.Resolve(context.Background(), domain.Song{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/1", u)
}

func TestHTTPResolverWrapsPreferredQualityFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewHTTPResolver(&Config{BaseURL: srv.URL, Quality: "flac"}, srv.Client())
	_, err := r.Resolve(context.Background(), domain.Song{Platform: "qq", ID: "abc"})
	assert.ErrorIs(t, err, ErrSongNotFound)
	assert.EqualError(t, err, "failed to resolve qq:abc: song not found")
	assert.Equal(t, int32(1), calls.Load())
}
