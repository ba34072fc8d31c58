// Package ingest records counted messages. Recording never fails the caller:
// persistence errors are retried, then logged and dropped.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/resilience"
)

const (
	defaultAttempts   = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// Store is the persistence the recorder needs.
type Store interface {
	RecordMessage(ctx context.Context, event *database.MessageEvent, chat database.ChatInfo) error
}

// Event is one message to count. MessageID makes retried inserts
// idempotent; zero means the message has no id.
type Event struct {
	Chat        database.ChatInfo
	MessageID   int64
	UserID      int64
	DisplayName string
	At          time.Time
}

// Recorder appends message events to the store.
type Recorder struct {
	store    Store
	logger   *slog.Logger
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

// NewRecorder creates a Recorder whose store calls each run under timeout.
func NewRecorder(store Store, logger *slog.Logger, timeout time.Duration) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		store:    store,
		logger:   logger.With("component", "ingest"),
		timeout:  timeout,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

// WithBackoff overrides the initial retry backoff. Used by tests.
func (r *Recorder) WithBackoff(d time.Duration) *Recorder {
	r.backoff = d
	return r
}

// Record appends one event and upserts its chat, retrying transient failures.
// A retry after a commit whose result was lost does not count the message
// twice. It reports whether the event was stored.
func (r *Recorder) Record(ctx context.Context, ev Event) bool {
	event := &database.MessageEvent{
		ChatID:      ev.Chat.ChatID,
		MessageID:   ev.MessageID,
		UserID:      ev.UserID,
		DisplayName: ev.DisplayName,
		CreatedAt:   ev.At.UTC(),
	}
	if ctx.Err() != nil {
		r.logger.WarnContext(ctx, "Context cancelled, not recording message",
			"error", ctx.Err(), "chat_id", event.ChatID)
		return false
	}

	attempt := 0
	err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:     r.attempts,
		InitialInterval: r.backoff,
		MaxInterval:     defaultMaxBackoff,
	}, func(ctx context.Context) error {
		attempt++
		dbCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		err := r.store.RecordMessage(dbCtx, event, ev.Chat)
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to record message",
				"error", err, "chat_id", event.ChatID, "user_id", event.UserID, "attempt", attempt)
		}
		return err
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to record message, dropping it",
			"error", err, "chat_id", event.ChatID, "user_id", event.UserID, "attempts", attempt)
		return false
	}
	return true
}

// DisplayName is the snapshot stored with each event: "@username" when the
// user has one, otherwise the first and last name.
func DisplayName(user *models.User) string {
	if user == nil {
		return ""
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// ChatInfo extracts the upserted chat metadata from a Telegram chat.
func ChatInfo(chat models.Chat) database.ChatInfo {
	title := chat.Title
	if title == "" {
		title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	return database.ChatInfo{
		ChatID:   chat.ID,
		Title:    title,
		Username: chat.Username,
		Kind:     string(chat.Type),
	}
}
