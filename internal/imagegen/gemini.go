package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	geminiMaxRetries = 2
	geminiRetryDelay = 2 * time.Second
)

// GeminiGenerator generates images with an Imagen model through the Gemini API.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGeminiGenerator creates a GeminiGenerator for model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, timeout time.Duration, logger *slog.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "imagegen_gemini")
	log.Info("Gemini image generator initialized", "model", model)
	return &GeminiGenerator{client: client, model: model, timeout: timeout, logger: log}, nil
}

// Generate produces one image for prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (*Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	}

	var resp *genai.GenerateImagesResponse
	var err error
	for attempt := 0; attempt <= geminiMaxRetries; attempt++ {
		resp, err = g.client.Models.GenerateImages(ctx, g.model, prompt, cfg)
		if err == nil || !retriable(err) || attempt == geminiMaxRetries {
			break
		}
		g.logger.WarnContext(ctx, "Image generation failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(geminiRetryDelay):
		}
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		}
		return nil, fmt.Errorf("gemini image generation failed: %w", err)
	}

	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mimeType := gi.Image.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		return &Image{Data: gi.Image.ImageBytes, MIMEType: mimeType}, nil
	}
	return nil, ErrNoImage
}

// retriable reports whether err is a server-side API error worth retrying.
func retriable(err error) bool {
	var apiErr *genai.APIError
	return errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503)
}
