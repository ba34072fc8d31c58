// Package imagesearch looks up photos through a Pexels compatible search API.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edgard/chattop/internal/resilience"
)

// ErrNotFound is returned when the search yields no photo.
var ErrNotFound = errors.New("no image found")

// Result is one photo found for a query.
type Result struct {
	URL          string
	Photographer string
	Alt          string
}

// Searcher finds an image for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// Client queries the search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *resilience.Breaker
}

// NewClient creates a Client. Every request is bounded by timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "image_search"),
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:   "image_search",
			Ignore: func(err error) bool { return errors.Is(err, ErrNotFound) },
		}, logger),
	}
}

type searchResponse struct {
	Photos []struct {
		ID           int64  `json:"id"`
		Photographer string `json:"photographer"`
		Alt          string `json:"alt"`
		Src          struct {
			Original string `json:"original"`
			Large    string `json:"large"`
			Medium   string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

// Search returns the best match for query. While the search API keeps
// failing, calls fail fast with resilience.ErrCircuitOpen.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	var res *Result
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.search(ctx, query)
		return err
	})
	return res, err
}

func (c *Client) search(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	for _, p := range body.Photos {
		src := firstNonEmpty(p.Src.Large, p.Src.Medium, p.Src.Original)
		if src == "" {
			continue
		}
		c.logger.DebugContext(ctx, "Image found", "query", query, "photo_id", p.ID)
		return &Result{URL: src, Photographer: p.Photographer, Alt: p.Alt}, nil
	}
	return nil, ErrNotFound
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
