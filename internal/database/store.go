package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordMessage appends one message event and upserts its chat
	// (title, kind, last activity, active=true) in a single transaction.
	// An event whose (chat, message id) was already recorded is not counted
	// again.
	RecordMessage(ctx context.Context, event *MessageEvent, chat ChatInfo) error

	// RegisterChat upserts a chat and marks it active.
	RegisterChat(ctx context.Context, chat ChatInfo, at time.Time) error

	// GetChat returns a chat by id, or nil, nil if it has never been seen.
	GetChat(ctx context.Context, chatID int64) (*Chat, error)

	// ListActiveChats returns every chat eligible for broadcasts.
	ListActiveChats(ctx context.Context) ([]Chat, error)

	// DeactivateChat excludes a chat from future broadcasts.
	DeactivateChat(ctx context.Context, chatID int64) error

	// NextWelcomeIndex atomically increments the chat's welcome counter and
	// returns its previous value.
	NextWelcomeIndex(ctx context.Context, chatID int64) (int, error)

	// Leaderboard returns the ranked top rows, the total event count, and
	// optionally the requester's position, all from one consistent snapshot.
	Leaderboard(ctx context.Context, query LeaderboardQuery) (*LeaderboardSnapshot, error)

	// UserChatCounts returns a user's all-time message count per chat.
	UserChatCounts(ctx context.Context, userID int64) ([]ChatCount, error)

	// TryAcquireQuizLock takes the broadcast lock if the cooldown since the
	// last broadcast has elapsed and the lock is free or older than lockTimeout.
	// It is a single conditional write; exactly one concurrent caller wins.
	// The returned token identifies this holder and must be passed to
	// ReleaseQuizLock.
	TryAcquireQuizLock(ctx context.Context, now time.Time, cooldown, lockTimeout time.Duration) (token time.Time, acquired bool, err error)

	// ReleaseQuizLock frees the lock held under token and stamps the last
	// broadcast time. It returns ErrQuizLockLost if another holder has taken
	// the lock over since.
	ReleaseQuizLock(ctx context.Context, token, now time.Time) error

	// GetQuizState returns the broadcast gate record.
	GetQuizState(ctx context.Context) (*QuizState, error)

	// ListQuizPolls returns the last poll dispatched to every chat.
	ListQuizPolls(ctx context.Context) ([]QuizPoll, error)

	// SaveQuizPoll records a dispatched poll and bumps the chat's quiz counter.
	SaveQuizPoll(ctx context.Context, poll QuizPoll) error

	// DeleteQuizPoll forgets the poll recorded for a chat.
	DeleteQuizPoll(ctx context.Context, chatID int64) error

	// UpdateSpamState runs fn against the user's spam state under a row lock
	// and persists whatever fn leaves in it. If fn returns an error nothing is written.
	UpdateSpamState(ctx context.Context, userID int64, fn func(state *SpamState) error) error

	// PruneSpamState deletes trackers untouched since before and not currently blocking.
	PruneSpamState(ctx context.Context, before time.Time) (int64, error)

	// PruneQuizPolls deletes poll records of inactive chats.
	PruneQuizPolls(ctx context.Context) (int64, error)

	// RunSQLMaintenance vacuums and analyzes the bot's tables.
	RunSQLMaintenance(ctx context.Context) error
}

// LeaderboardQuery parameterizes Store.Leaderboard.
type LeaderboardQuery struct {
	Filter MessageFilter
	Limit  int
	// UserID, when non-zero, requests that user's rank and count.
	UserID int64
}

// LeaderboardSnapshot is the result of Store.Leaderboard.
type LeaderboardSnapshot struct {
	Rows  []LeaderboardRow
	Total int64
	// User is nil when no user was requested or the user has no events in scope.
	User *UserRank
}

// ErrInvalidFilter is returned for a filter that names neither a chat nor all chats.
var ErrInvalidFilter = errors.New("message filter must name a chat or all chats")

// ErrQuizLockLost is returned when releasing a quiz lock that expired and was
// acquired by another broadcast.
var ErrQuizLockLost = errors.New("quiz lock no longer held")

const maxLeaderboardLimit = 100

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
func (s *sqlxStore) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

const upsertChatQuery = `
    INSERT INTO chats (chat_id, title, username, kind, last_activity_at, active, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, TRUE, $5, $5)
    ON CONFLICT (chat_id) DO UPDATE SET
        title            = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE chats.title END,
        username         = EXCLUDED.username,
        kind             = CASE WHEN EXCLUDED.kind <> '' THEN EXCLUDED.kind ELSE chats.kind END,
        last_activity_at = GREATEST(chats.last_activity_at, EXCLUDED.last_activity_at),
        active           = TRUE,
        updated_at       = EXCLUDED.updated_at;
`

// RecordMessage appends a message event and upserts the chat atomically.
func (s *sqlxStore) RecordMessage(ctx context.Context, event *MessageEvent, chat ChatInfo) error {
	if event == nil {
		return errors.New("cannot record nil message event")
	}
	if event.ChatID == 0 {
		return errors.New("message event must have a non-zero chat_id")
	}
	if event.UserID == 0 {
		return errors.New("message event must have a non-zero user_id")
	}
	if event.CreatedAt.IsZero() {
		return errors.New("message event must have a non-zero timestamp")
	}
	if chat.ChatID != event.ChatID {
		return fmt.Errorf("chat %d does not match event chat %d", chat.ChatID, event.ChatID)
	}

	err := s.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		const insertEvent = `
            INSERT INTO message_events (chat_id, message_id, user_id, display_name, created_at)
            VALUES ($1, NULLIF($2::BIGINT, 0), $3, $4, $5)
            ON CONFLICT DO NOTHING
            RETURNING id;
        `
		err := tx.QueryRowxContext(ctx, insertEvent,
			event.ChatID, event.MessageID, event.UserID, event.DisplayName, event.CreatedAt.UTC(),
		).Scan(&event.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.logger.DebugContext(ctx, "Message already recorded", "chat_id", event.ChatID, "message_id", event.MessageID)
		case err != nil:
			return fmt.Errorf("failed to insert message event: %w", err)
		}

		if _, err := tx.ExecContext(ctx, upsertChatQuery,
			chat.ChatID, chat.Title, chat.Username, chat.Kind, event.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("failed to upsert chat: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording message", "chat_id", event.ChatID, "user_id", event.UserID, "error", err)
		return fmt.Errorf("failed to record message (chat %d, user %d): %w", event.ChatID, event.UserID, err)
	}

	s.logger.DebugContext(ctx, "Message recorded", "chat_id", event.ChatID, "user_id", event.UserID, "event_id", event.ID)
	return nil
}

// RegisterChat upserts a chat and marks it active.
func (s *sqlxStore) RegisterChat(ctx context.Context, chat ChatInfo, at time.Time) error {
	if chat.ChatID == 0 {
		return errors.New("chat_id cannot be zero")
	}
	if _, err := s.db.ExecContext(ctx, upsertChatQuery, chat.ChatID, chat.Title, chat.Username, chat.Kind, at.UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error registering chat", "chat_id", chat.ChatID, "error", err)
		return fmt.Errorf("failed to register chat %d: %w", chat.ChatID, err)
	}
	s.logger.DebugContext(ctx, "Chat registered", "chat_id", chat.ChatID, "kind", chat.Kind)
	return nil
}

const chatColumns = `chat_id, title, username, kind, last_activity_at, active, quiz_count, welcome_count, created_at, updated_at`

// GetChat returns a chat by id, or nil, nil if not found.
func (s *sqlxStore) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}
	return &chat, nil
}

// ListActiveChats returns all chats eligible for broadcasts, ordered by id.
func (s *sqlxStore) ListActiveChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	err := s.db.SelectContext(ctx, &chats, `SELECT `+chatColumns+` FROM chats WHERE active ORDER BY chat_id`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing active chats", "error", err)
		return nil, fmt.Errorf("failed to list active chats: %w", err)
	}
	return chats, nil
}

// DeactivateChat flags a chat as no longer eligible for broadcasts.
func (s *sqlxStore) DeactivateChat(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chats SET active = FALSE, updated_at = NOW() WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("failed to deactivate chat %d: %w", chatID, err)
	}
	s.logger.InfoContext(ctx, "Chat deactivated", "chat_id", chatID)
	return nil
}

// NextWelcomeIndex increments the welcome counter and returns the previous value.
func (s *sqlxStore) NextWelcomeIndex(ctx context.Context, chatID int64) (int, error) {
	var next int
	err := s.db.GetContext(ctx, &next,
		`UPDATE chats SET welcome_count = welcome_count + 1 WHERE chat_id = $1 RETURNING welcome_count`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to bump welcome counter for chat %d: %w", chatID, err)
	}
	return next - 1, nil
}

// whereClause renders the filter as a WHERE clause with positional
// parameters starting at $1.
func (f MessageFilter) whereClause() (string, []any, error) {
	if f.ChatID == 0 && !f.AllChats {
		return "", nil, ErrInvalidFilter
	}

	var conds []string
	var args []any
	if !f.AllChats {
		args = append(args, f.ChatID)
		conds = append(conds, fmt.Sprintf("chat_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// rankedCTE ranks every user in the filter by count, then by user id so that
// ties resolve the same way on every query.
const rankedCTE = `
    WITH counts AS (
        SELECT user_id, COUNT(*) AS message_count
        FROM message_events
        %s
        GROUP BY user_id
    ), ranked AS (
        SELECT user_id, message_count,
               ROW_NUMBER() OVER (ORDER BY message_count DESC, user_id ASC) AS rank
        FROM counts
    )
`

// Leaderboard computes rows, total and the requester's rank in one read-only snapshot.
func (s *sqlxStore) Leaderboard(ctx context.Context, query LeaderboardQuery) (*LeaderboardSnapshot, error) {
	where, args, err := query.Filter.whereClause()
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 10
	} else if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	cte := fmt.Sprintf(rankedCTE, where)
	limitArg := len(args) + 1
	rowsQuery := cte + fmt.Sprintf(`
        SELECT r.rank, r.user_id, r.message_count, COALESCE(n.display_name, '') AS display_name
        FROM ranked r
        LEFT JOIN LATERAL (
            SELECT e.display_name
            FROM message_events e
            WHERE e.user_id = r.user_id
            ORDER BY e.created_at DESC, e.id DESC
            LIMIT 1
        ) n ON TRUE
        WHERE r.rank <= $%d
        ORDER BY r.rank;
    `, limitArg)
	totalQuery := `SELECT COUNT(*) FROM message_events ` + where
	userQuery := cte + fmt.Sprintf(`SELECT rank, message_count FROM ranked WHERE user_id = $%d;`, limitArg)

	snapshot := &LeaderboardSnapshot{}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err = s.withTx(ctx, opts, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &snapshot.Rows, rowsQuery, append(args, limit)...); err != nil {
			return fmt.Errorf("failed to query leaderboard rows: %w", err)
		}
		if err := tx.GetContext(ctx, &snapshot.Total, totalQuery, args...); err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}
		if query.UserID == 0 {
			return nil
		}
		var rank UserRank
		err := tx.GetContext(ctx, &rank, userQuery, append(args, query.UserID)...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to query user rank: %w", err)
		}
		snapshot.User = &rank
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error computing leaderboard",
			"chat_id", query.Filter.ChatID, "all_chats", query.Filter.AllChats, "error", err)
		return nil, err
	}

	s.logger.DebugContext(ctx, "Leaderboard computed",
		"chat_id", query.Filter.ChatID, "all_chats", query.Filter.AllChats,
		"rows", len(snapshot.Rows), "total", snapshot.Total)
	return snapshot, nil
}

// UserChatCounts returns a user's all-time message count per chat, busiest first.
func (s *sqlxStore) UserChatCounts(ctx context.Context, userID int64) ([]ChatCount, error) {
	var counts []ChatCount
	const query = `
        SELECT m.chat_id, COALESCE(c.title, '') AS title, COUNT(*) AS message_count
        FROM message_events m
        LEFT JOIN chats c ON c.chat_id = m.chat_id
        WHERE m.user_id = $1
        GROUP BY m.chat_id, c.title
        ORDER BY message_count DESC, m.chat_id ASC;
    `
	if err := s.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get chat counts for user %d: %w", userID, err)
	}
	return counts, nil
}

// TryAcquireQuizLock is a single conditional UPDATE on the quiz_state row.
// The lock_acquired_at it writes is the holder's token.
func (s *sqlxStore) TryAcquireQuizLock(ctx context.Context, now time.Time, cooldown, lockTimeout time.Duration) (time.Time, bool, error) {
	const query = `
        UPDATE quiz_state
        SET in_flight = TRUE, lock_acquired_at = $1
        WHERE id = 1
          AND (last_broadcast_at IS NULL OR last_broadcast_at <= $2)
          AND (NOT in_flight OR lock_acquired_at IS NULL OR lock_acquired_at <= $3)
        RETURNING lock_acquired_at;
    `
	// Postgres keeps microseconds; the token must compare equal on release.
	now = now.UTC().Truncate(time.Microsecond)
	var token time.Time
	err := s.db.GetContext(ctx, &token, query, now, now.Add(-cooldown), now.Add(-lockTimeout))
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to acquire quiz lock: %w", err)
	}
	return token.UTC(), true, nil
}

// ReleaseQuizLock frees the lock and stamps last_broadcast_at, but only while
// token still identifies the holder.
func (s *sqlxStore) ReleaseQuizLock(ctx context.Context, token, now time.Time) error {
	const query = `
        UPDATE quiz_state
        SET in_flight = FALSE, lock_acquired_at = NULL, last_broadcast_at = $1
        WHERE id = 1 AND in_flight AND lock_acquired_at = $2;
    `
	result, err := s.db.ExecContext(ctx, query, now.UTC(), token.UTC())
	if err != nil {
		return fmt.Errorf("failed to release quiz lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read quiz lock release result: %w", err)
	}
	if affected == 0 {
		return ErrQuizLockLost
	}
	return nil
}

// GetQuizState returns the broadcast gate record.
func (s *sqlxStore) GetQuizState(ctx context.Context) (*QuizState, error) {
	var state QuizState
	err := s.db.GetContext(ctx, &state, `SELECT in_flight, lock_acquired_at, last_broadcast_at FROM quiz_state WHERE id = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz state: %w", err)
	}
	return &state, nil
}

// ListQuizPolls returns every recorded poll.
func (s *sqlxStore) ListQuizPolls(ctx context.Context) ([]QuizPoll, error) {
	var polls []QuizPoll
	if err := s.db.SelectContext(ctx, &polls, `SELECT chat_id, message_id, sent_at FROM quiz_polls ORDER BY chat_id`); err != nil {
		return nil, fmt.Errorf("failed to list quiz polls: %w", err)
	}
	return polls, nil
}

// SaveQuizPoll upserts the chat's poll record and bumps its quiz counter.
func (s *sqlxStore) SaveQuizPoll(ctx context.Context, poll QuizPoll) error {
	err := s.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		const upsert = `
            INSERT INTO quiz_polls (chat_id, message_id, sent_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (chat_id) DO UPDATE SET message_id = EXCLUDED.message_id, sent_at = EXCLUDED.sent_at;
        `
		if _, err := tx.ExecContext(ctx, upsert, poll.ChatID, poll.MessageID, poll.SentAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert quiz poll: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chats SET quiz_count = quiz_count + 1 WHERE chat_id = $1`, poll.ChatID); err != nil {
			return fmt.Errorf("failed to bump quiz counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save quiz poll for chat %d: %w", poll.ChatID, err)
	}
	return nil
}

// DeleteQuizPoll forgets the poll recorded for a chat.
func (s *sqlxStore) DeleteQuizPoll(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM quiz_polls WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to delete quiz poll for chat %d: %w", chatID, err)
	}
	return nil
}

// UpdateSpamState performs a locked read-modify-write of the user's tracker.
func (s *sqlxStore) UpdateSpamState(ctx context.Context, userID int64, fn func(state *SpamState) error) error {
	if userID == 0 {
		return errors.New("user_id cannot be zero")
	}

	err := s.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spam_state (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("failed to create spam state: %w", err)
		}

		var state SpamState
		if err := tx.GetContext(ctx, &state,
			`SELECT user_id, recent, blocked_until, updated_at FROM spam_state WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("failed to lock spam state: %w", err)
		}

		if err := fn(&state); err != nil {
			return err
		}
		if state.Recent == nil {
			state.Recent = pq.Int64Array{}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE spam_state SET recent = $2, blocked_until = $3, updated_at = NOW() WHERE user_id = $1`,
			userID, state.Recent, state.BlockedUntil); err != nil {
			return fmt.Errorf("failed to write spam state: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update spam state for user %d: %w", userID, err)
	}
	return nil
}

// PruneSpamState deletes idle trackers that are not blocking anyone.
func (s *sqlxStore) PruneSpamState(ctx context.Context, before time.Time) (int64, error) {
	const query = `
        DELETE FROM spam_state
        WHERE updated_at < $1 AND (blocked_until IS NULL OR blocked_until < $1);
    `
	result, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune spam state: %w", err)
	}
	return result.RowsAffected()
}

// PruneQuizPolls deletes poll records belonging to inactive or unknown chats.
func (s *sqlxStore) PruneQuizPolls(ctx context.Context) (int64, error) {
	const query = `
        DELETE FROM quiz_polls p
        WHERE NOT EXISTS (SELECT 1 FROM chats c WHERE c.chat_id = p.chat_id AND c.active);
    `
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quiz polls: %w", err)
	}
	return result.RowsAffected()
}

// RunSQLMaintenance vacuums the small, frequently rewritten tables and
// refreshes planner statistics on the event log.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance...")

	// VACUUM cannot run inside a transaction block.
	statements := []string{
		`VACUUM (ANALYZE) spam_state`,
		`VACUUM (ANALYZE) quiz_polls`,
		`VACUUM (ANALYZE) quiz_state`,
		`VACUUM (ANALYZE) chats`,
		`ANALYZE message_events`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "Maintenance statement failed", "statement", stmt, "error", err)
			return fmt.Errorf("maintenance statement %q failed: %w", stmt, err)
		}
	}

	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}
