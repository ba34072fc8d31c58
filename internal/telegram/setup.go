// Package telegram handles the setup of the Telegram bot, the registration of
// its handlers and the delivery of quiz polls.
package telegram

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/chattop/internal/bot/handlers"
)

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
// requestTimeout bounds every Bot API call; pollTimeout is the long-poll duration.
func NewTelegramBot(token string, requestTimeout, pollTimeout time.Duration, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	// The HTTP timeout must outlast a long poll.
	client := &http.Client{Timeout: requestTimeout + pollTimeout}
	opts = append([]bot.Option{
		bot.WithHTTPClient(pollTimeout, client),
		bot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created successfully", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps a handler function with a slice of middleware.
// Middleware are applied in reverse order so the first one in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// CommandPatterns returns the patterns a command must be registered under.
// In groups Telegram clients send "/cmd@botname", which the plain pattern
// does not match.
func CommandPatterns(pattern, botUsername string) []string {
	if botUsername == "" {
		return []string{pattern}
	}
	return []string{pattern, pattern + "@" + botUsername}
}

// RegisterHandlers registers command, callback and message handlers with the
// Telegram bot instance, applying each handler's middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, botUsername string, registeredHandlers map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	log.Info("Registering Telegram handlers...", "count", len(registeredHandlers))

	for name, regHandler := range registeredHandlers {
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "name", name, "pattern", regHandler.Pattern)
			continue
		}

		finalHandler := applyMiddleware(regHandler.Handler, regHandler.Middleware)

		patterns := []string{regHandler.Pattern}
		if regHandler.MatchType == bot.MatchTypeCommandStartOnly || regHandler.MatchType == bot.MatchTypeCommand {
			patterns = CommandPatterns(regHandler.Pattern, botUsername)
		}
		for _, pattern := range patterns {
			b.RegisterHandler(regHandler.HandlerType, pattern, regHandler.MatchType, finalHandler)
		}
		log.Debug("Registered handler", "name", name, "patterns", patterns,
			"match_type", regHandler.MatchType, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registeredHandlers))
	return nil
}
