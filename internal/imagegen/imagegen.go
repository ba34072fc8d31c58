// Package imagegen proxies text-to-image generation requests to an external
// backend: either an asynchronous HTTP job API or Google's Imagen models.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/chattop/internal/config"
)

var (
	// ErrTimeout is returned when the image is not ready within the configured timeout.
	ErrTimeout = errors.New("image generation timed out")
	// ErrNoImage is returned when the backend finished without producing an image.
	ErrNoImage = errors.New("no image generated")
	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// Image is a generated image.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator turns a prompt into an image.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Image, error)
}

// New builds the generator selected by cfg.Provider. It returns nil when image
// generation is disabled.
func New(ctx context.Context, cfg config.ImageGenConfig, logger *slog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "http":
		return NewHTTPGenerator(cfg.BaseURL, cfg.APIKey, cfg.PollInterval, cfg.Timeout, logger), nil
	case "gemini":
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown image generation provider %q", cfg.Provider)
	}
}
