package database

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// MessageEvent is one counted message. Rows are append-only.
type MessageEvent struct {
	ID          int64     `db:"id"`
	ChatID      int64     `db:"chat_id"`
	MessageID   int64     `db:"message_id"`
	UserID      int64     `db:"user_id"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}

// Chat is a chat the bot has seen. Active chats receive quiz broadcasts.
type Chat struct {
	ChatID         int64     `db:"chat_id"`
	Title          string    `db:"title"`
	Username       string    `db:"username"`
	Kind           string    `db:"kind"`
	LastActivityAt time.Time `db:"last_activity_at"`
	Active         bool      `db:"active"`
	QuizCount      int       `db:"quiz_count"`
	WelcomeCount   int       `db:"welcome_count"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ChatInfo carries the chat metadata upserted on every registration event.
type ChatInfo struct {
	ChatID   int64
	Title    string
	Username string
	Kind     string
}

// MessageFilter selects message events for aggregation.
// A zero ChatID with AllChats unset is rejected by the store.
type MessageFilter struct {
	ChatID   int64
	AllChats bool
	// Since is inclusive; the zero value disables the time predicate.
	Since time.Time
}

// LeaderboardRow is one ranked sender.
type LeaderboardRow struct {
	Rank         int64  `db:"rank"`
	UserID       int64  `db:"user_id"`
	DisplayName  string `db:"display_name"`
	MessageCount int64  `db:"message_count"`
}

// UserRank is a single user's position and count under a filter.
type UserRank struct {
	Rank         int64 `db:"rank"`
	MessageCount int64 `db:"message_count"`
}

// ChatCount is a user's message count in one chat.
type ChatCount struct {
	ChatID       int64  `db:"chat_id"`
	Title        string `db:"title"`
	MessageCount int64  `db:"message_count"`
}

// QuizPoll records the last poll dispatched to a chat.
type QuizPoll struct {
	ChatID    int64     `db:"chat_id"`
	MessageID int       `db:"message_id"`
	SentAt    time.Time `db:"sent_at"`
}

// QuizState is the process-wide broadcast gate.
type QuizState struct {
	InFlight        bool         `db:"in_flight"`
	LockAcquiredAt  sql.NullTime `db:"lock_acquired_at"`
	LastBroadcastAt sql.NullTime `db:"last_broadcast_at"`
}

// SpamState is the sliding-window tracker for one user.
// Recent holds unix-millisecond timestamps of messages inside the window.
type SpamState struct {
	UserID       int64         `db:"user_id"`
	Recent       pq.Int64Array `db:"recent"`
	BlockedUntil sql.NullTime  `db:"blocked_until"`
	UpdatedAt    time.Time     `db:"updated_at"`
}
