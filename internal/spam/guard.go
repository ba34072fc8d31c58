// Package spam implements the per-user flood guard. A user who sends
// MessageLimit messages within Window is blocked for BlockDuration; while
// blocked their messages are neither counted nor added to the window.
package spam

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/chattop/internal/database"
)

// Verdict is the guard's decision for one message.
type Verdict int

const (
	// Allow means the message is counted.
	Allow Verdict = iota
	// Block means this message tripped the limit. It is not counted and the
	// user should be warned once.
	Block
	// Suppress means the user is already blocked. The message is silently dropped.
	Suppress
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Block:
		return "block"
	case Suppress:
		return "suppress"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Counted reports whether a message with this verdict is ingested.
func (v Verdict) Counted() bool { return v == Allow }

// Config holds the guard thresholds.
type Config struct {
	MessageLimit  int
	Window        time.Duration
	BlockDuration time.Duration
}

// Store persists per-user guard state under a row lock.
type Store interface {
	UpdateSpamState(ctx context.Context, userID int64, fn func(state *database.SpamState) error) error
}

// Guard evaluates messages against the persisted per-user window.
type Guard struct {
	store   Store
	cfg     Config
	timeout time.Duration
	logger  *slog.Logger
}

// NewGuard creates a Guard. timeout bounds each store round trip.
func NewGuard(store Store, cfg Config, timeout time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Guard{
		store:   store,
		cfg:     cfg,
		timeout: timeout,
		logger:  logger.With("component", "spam_guard"),
	}
}

// Check evaluates one message from userID at now and persists the new state.
// If the store fails the guard fails open: the verdict is Allow and the error
// is returned for logging only.
func (g *Guard) Check(ctx context.Context, userID int64, now time.Time) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	verdict := Allow
	err := g.store.UpdateSpamState(ctx, userID, func(state *database.SpamState) error {
		verdict = Evaluate(state, now, g.cfg)
		return nil
	})
	if err != nil {
		g.logger.WarnContext(ctx, "Spam state unavailable, allowing message", "user_id", userID, "error", err)
		return Allow, fmt.Errorf("spam check for user %d: %w", userID, err)
	}

	if verdict == Block {
		g.logger.InfoContext(ctx, "User blocked for flooding",
			"user_id", userID, "blocked_for", g.cfg.BlockDuration)
	}
	return verdict, nil
}

// Evaluate advances state by one message at now and returns the verdict.
//
// States: Clear (no window), Counting (window holds timestamps), Blocked
// (BlockedUntil in the future). Evaluate mutates state in place.
func Evaluate(state *database.SpamState, now time.Time, cfg Config) Verdict {
	if state.BlockedUntil.Valid {
		if now.Before(state.BlockedUntil.Time) {
			return Suppress
		}
		state.BlockedUntil = sql.NullTime{}
		state.Recent = state.Recent[:0]
	}

	cutoff := now.Add(-cfg.Window).UnixMilli()
	kept := state.Recent[:0]
	for _, ts := range state.Recent {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now.UnixMilli())

	if len(kept) >= cfg.MessageLimit {
		state.Recent = kept[:0]
		state.BlockedUntil = sql.NullTime{Time: now.Add(cfg.BlockDuration).UTC(), Valid: true}
		return Block
	}

	state.Recent = kept
	return Allow
}
