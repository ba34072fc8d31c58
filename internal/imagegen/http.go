package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxImageSize caps the downloaded image; Telegram rejects larger photo uploads.
const maxImageSize = 10 << 20

// Job states reported by the backend.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// HTTPGenerator drives an asynchronous generation API: a job is submitted,
// its status polled until it finishes, and the resulting image downloaded.
type HTTPGenerator struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewHTTPGenerator creates an HTTPGenerator. timeout bounds the whole
// submit, poll and fetch sequence.
func NewHTTPGenerator(baseURL, apiKey string, pollInterval, timeout time.Duration, logger *slog.Logger) *HTTPGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &HTTPGenerator{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		timeout:      timeout,
		httpClient:   &http.Client{},
		logger:       logger.With("component", "imagegen_http"),
	}
}

type submitRequest struct {
	Prompt string `json:"prompt"`
}

type jobResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	OutputURL string `json:"output_url"`
	Error     string `json:"error"`
}

// Generate submits prompt and waits for the result.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (*Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	img, err := g.generate(ctx, prompt)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}
	return img, err
}

func (g *HTTPGenerator) generate(ctx context.Context, prompt string) (*Image, error) {
	var job jobResponse
	if err := g.doJSON(ctx, http.MethodPost, g.baseURL+"/generations", submitRequest{Prompt: prompt}, &job); err != nil {
		return nil, fmt.Errorf("failed to submit generation job: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("backend returned a job without id")
	}
	g.logger.DebugContext(ctx, "Generation job submitted", "job_id", job.ID)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for job.Status != statusSucceeded {
		if job.Status == statusFailed {
			return nil, fmt.Errorf("%w: job %s failed: %s", ErrNoImage, job.ID, job.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if err := g.doJSON(ctx, http.MethodGet, g.baseURL+"/generations/"+url.PathEscape(job.ID), nil, &job); err != nil {
			return nil, fmt.Errorf("failed to poll generation job: %w", err)
		}
	}

	if job.OutputURL == "" {
		return nil, fmt.Errorf("%w: job %s has no output", ErrNoImage, job.ID)
	}
	return g.fetch(ctx, job.OutputURL)
}

func (g *HTTPGenerator) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (g *HTTPGenerator) fetch(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &Image{Data: data, MIMEType: mimeType}, nil
}
