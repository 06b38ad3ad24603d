package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/roomtune/server/internal/domain"
)

var (
	ErrSongNotFound = errors.New("song not found")
	ErrNoStreamURL  = errors.New("no stream url available")
)

// Resolver turns a catalog song into a streamable URL.
type Resolver interface {
	Resolve(ctx context.Context, song domain.Song) (string, error)
}

type ResolverFunc func(ctx context.Context, song domain.Song) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, song domain.Song) (string, error) {
	return f(ctx, song)
}

type Config struct {
	BaseURL string
	Quality string
}

// HTTPResolver asks the catalog service for a song url, preferring the
// configured quality.
type HTTPResolver struct {
	baseURL string
	quality string
	client  *http.Client
}

func NewHTTPResolver(cfg *Config, client *http.Client) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPResolver{
		baseURL: cfg.BaseURL,
		quality: cfg.Quality,
		client:  client,
	}
}

type urlResponse struct {
	URL string `json:"url"`
}

func (r HTTPResolver) Resolve(ctx context.Context, song domain.Song) (string, error) {
	if r.quality != "" {
		streamURL, err := r.fetch(ctx, song.ID, r.quality)
		if err == nil {
			return streamURL, nil
		}
		if !errors.Is(err, ErrNoStreamURL) {
			return "", fmt.Errorf("failed to resolve %s: %w", song.Key(), err)
		}
	}

	streamURL, err := r.fetch(ctx, song.ID, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", song.Key(), err)
	}

	return streamURL, nil
}

func (r HTTPResolver) fetch(ctx context.Context, id, quality string) (string, error) {
	u := fmt.Sprintf("%s/song/%s/url", r.baseURL, url.PathEscape(id))
	if quality != "" {
		u += "?quality=" + url.QueryEscape(quality)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return "", ErrSongNotFound
		default:
			return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	var result urlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.URL == "" {
		return "", ErrNoStreamURL
	}

	return result.URL, nil
}
