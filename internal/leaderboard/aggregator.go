// Package leaderboard computes ranked message counts per chat and scope and
// renders them as a MarkdownV2 caption and a PNG image.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/chattop/internal/database"
)

// TopN is the number of ranked rows in a leaderboard.
const TopN = 10

// ErrUnavailable wraps every store failure seen while computing a leaderboard.
var ErrUnavailable = errors.New("leaderboard unavailable")

// GlobalTitle is the title of global-scope leaderboards.
const GlobalTitle = "Global"

// Store is the persistence the aggregator needs.
type Store interface {
	Leaderboard(ctx context.Context, query database.LeaderboardQuery) (*database.LeaderboardSnapshot, error)
	GetChat(ctx context.Context, chatID int64) (*database.Chat, error)
}

// Row is one ranked sender.
type Row struct {
	Rank   int
	UserID int64
	Name   string
	Count  int64
}

// RequesterStat is the requesting user's own position.
type RequesterStat struct {
	Rank  int
	Count int64
}

// Result is a computed leaderboard, the input of both renderers.
type Result struct {
	Title  string
	Scope  Scope
	ChatID int64
	Rows   []Row
	Total  int64
	// Requester is nil when no requester was given or they have no messages in scope.
	Requester *RequesterStat
}

// Aggregator computes leaderboards from the store.
type Aggregator struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. timeout bounds each computation.
func NewAggregator(store Store, timeout time.Duration, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With("component", "leaderboard"),
	}
}

// WithClock replaces the time source. Used by tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Compute returns the top rows, total and requester stat for chatID and scope.
// requesterID of zero skips the requester stat. Store failures are returned
// wrapped in ErrUnavailable.
func (a *Aggregator) Compute(ctx context.Context, chatID int64, scope Scope, requesterID int64) (*Result, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScope, int(scope))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	snapshot, err := a.store.Leaderboard(ctx, database.LeaderboardQuery{
		Filter: scope.Filter(chatID, a.now()),
		Limit:  TopN,
		UserID: requesterID,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to compute leaderboard", "chat_id", chatID, "scope", scope.Key(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res := &Result{
		Title:  a.title(ctx, chatID, scope),
		Scope:  scope,
		ChatID: chatID,
		Rows:   make([]Row, 0, len(snapshot.Rows)),
		Total:  snapshot.Total,
	}
	for _, r := range snapshot.Rows {
		res.Rows = append(res.Rows, Row{
			Rank:   int(r.Rank),
			UserID: r.UserID,
			Name:   r.DisplayName,
			Count:  r.MessageCount,
		})
	}
	if snapshot.User != nil {
		res.Requester = &RequesterStat{Rank: int(snapshot.User.Rank), Count: snapshot.User.MessageCount}
	}

	a.logger.DebugContext(ctx, "Leaderboard computed",
		"chat_id", chatID, "scope", scope.Key(), "rows", len(res.Rows), "total", res.Total)
	return res, nil
}

// title is "Global" for global scopes and the chat title otherwise.
func (a *Aggregator) title(ctx context.Context, chatID int64, scope Scope) string {
	if scope.IsGlobal() {
		return GlobalTitle
	}
	chat, err := a.store.GetChat(ctx, chatID)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to load chat title", "chat_id", chatID, "error", err)
	}
	if chat == nil || chat.Title == "" {
		return "This chat"
	}
	return chat.Title
}
