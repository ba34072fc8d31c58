package quiz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/chattop/internal/database"
)

// ErrChatUnreachable marks a delivery failure that will not succeed on retry,
// such as the bot being blocked or removed. Such chats are deactivated.
var ErrChatUnreachable = errors.New("chat permanently unreachable")

// Store is the persistence the scheduler needs.
type Store interface {
	TryAcquireQuizLock(ctx context.Context, now time.Time, cooldown, lockTimeout time.Duration) (time.Time, bool, error)
	ReleaseQuizLock(ctx context.Context, token, now time.Time) error
	ListActiveChats(ctx context.Context) ([]database.Chat, error)
	ListQuizPolls(ctx context.Context) ([]database.QuizPoll, error)
	SaveQuizPoll(ctx context.Context, poll database.QuizPoll) error
	DeleteQuizPoll(ctx context.Context, chatID int64) error
	DeactivateChat(ctx context.Context, chatID int64) error
}

// Sender delivers quiz polls. Errors that will never succeed must wrap
// ErrChatUnreachable.
type Sender interface {
	SendQuiz(ctx context.Context, chatID int64, q *Question) (messageID int, err error)
	DeletePoll(ctx context.Context, chatID int64, messageID int) error
}

// Config holds scheduler timing and fan-out settings.
type Config struct {
	Cooldown         time.Duration
	LockTimeout      time.Duration
	BroadcastTimeout time.Duration
	StoreTimeout     time.Duration
	Concurrency      int
	CleanupPrevious  bool
}

// Report summarises one broadcast attempt.
type Report struct {
	Chats       int
	Sent        int
	Failed      int
	Deactivated int
}

// Scheduler gates and runs quiz broadcasts. It has two states: idle, and
// broadcasting while the store lock is held.
type Scheduler struct {
	store   Store
	fetcher Fetcher
	sender  Sender
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(store Store, fetcher Fetcher, sender Sender, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Scheduler{
		store:   store,
		fetcher: fetcher,
		sender:  sender,
		cfg:     cfg,
		logger:  logger.With("component", "quiz_scheduler"),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// MaybeTrigger starts a broadcast if the cooldown has elapsed and no other
// broadcast holds the lock. The broadcast runs in the background; the return
// value reports whether this call started it.
func (s *Scheduler) MaybeTrigger(ctx context.Context) bool {
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	token, acquired, err := s.store.TryAcquireQuizLock(acquireCtx, s.now(), s.cfg.Cooldown, s.cfg.LockTimeout)
	cancel()
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to check quiz gate", "error", err)
		return false
	}
	if !acquired {
		return false
	}

	s.logger.InfoContext(ctx, "Quiz lock acquired, starting broadcast")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BroadcastTimeout)
		defer cancel()
		if _, err := s.Broadcast(bctx, token); err != nil {
			s.logger.ErrorContext(bctx, "Quiz broadcast aborted", "error", err)
		}
	}()
	return true
}

// Wait blocks until every background broadcast has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Broadcast runs one broadcast attempt. The caller must hold the quiz lock
// under token; Broadcast always releases it, stamping the end of the attempt
// as the last broadcast time.
func (s *Scheduler) Broadcast(ctx context.Context, token time.Time) (*Report, error) {
	start := s.now()
	defer s.release(ctx, token)

	q, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trivia question: %w", err)
	}

	chats, err := s.listActiveChats(ctx)
	if err != nil {
		return nil, err
	}

	previous := make(map[int64]int)
	if s.cfg.CleanupPrevious {
		previous = s.previousPolls(ctx)
	}

	var sent, failed, deactivated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, chat := range chats {
		prevID, hasPrev := previous[chat.ChatID]
		g.Go(func() error {
			if hasPrev {
				s.deletePrevious(gctx, chat.ChatID, prevID)
			}
			switch err := s.deliver(gctx, chat.ChatID, q); {
			case err == nil:
				sent.Add(1)
			case errors.Is(err, ErrChatUnreachable):
				deactivated.Add(1)
			default:
				failed.Add(1)
			}
			// Per-chat failures never cancel the rest of the fan-out.
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Chats:       len(chats),
		Sent:        int(sent.Load()),
		Failed:      int(failed.Load()),
		Deactivated: int(deactivated.Load()),
	}
	s.logger.InfoContext(ctx, "Quiz broadcast finished",
		"chats", report.Chats, "sent", report.Sent, "failed", report.Failed,
		"deactivated", report.Deactivated, "duration", s.now().Sub(start))
	return report, nil
}

func (s *Scheduler) release(ctx context.Context, token time.Time) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	err := s.store.ReleaseQuizLock(releaseCtx, token, s.now())
	if errors.Is(err, database.ErrQuizLockLost) {
		s.logger.WarnContext(ctx, "Quiz lock expired during broadcast and was taken over",
			"lock_timeout", s.cfg.LockTimeout)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to release quiz lock; it expires after the lock timeout",
			"error", err, "lock_timeout", s.cfg.LockTimeout)
	}
}

func (s *Scheduler) listActiveChats(ctx context.Context) ([]database.Chat, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	chats, err := s.store.ListActiveChats(storeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active chats: %w", err)
	}
	return chats, nil
}

func (s *Scheduler) previousPolls(ctx context.Context) map[int64]int {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	out := make(map[int64]int)
	polls, err := s.store.ListQuizPolls(storeCtx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to list previous quiz polls, skipping cleanup", "error", err)
		return out
	}
	for _, p := range polls {
		out[p.ChatID] = p.MessageID
	}
	return out
}

func (s *Scheduler) deletePrevious(ctx context.Context, chatID int64, messageID int) {
	if err := s.sender.DeletePoll(ctx, chatID, messageID); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete previous quiz poll",
			"chat_id", chatID, "message_id", messageID, "error", err)
		return
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.store.DeleteQuizPoll(storeCtx, chatID); err != nil {
		s.logger.WarnContext(ctx, "Failed to forget previous quiz poll", "chat_id", chatID, "error", err)
	}
}

// deliver sends the poll to one chat and records it, deactivating the chat
// if delivery failed permanently.
func (s *Scheduler) deliver(ctx context.Context, chatID int64, q *Question) error {
	messageID, err := s.sender.SendQuiz(ctx, chatID, q)
	if err != nil {
		if errors.Is(err, ErrChatUnreachable) {
			s.logger.WarnContext(ctx, "Chat unreachable, deactivating", "chat_id", chatID, "error", err)
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
			defer cancel()
			if dErr := s.store.DeactivateChat(storeCtx, chatID); dErr != nil {
				s.logger.ErrorContext(ctx, "Failed to deactivate chat", "chat_id", chatID, "error", dErr)
			}
			return err
		}
		s.logger.WarnContext(ctx, "Failed to send quiz poll", "chat_id", chatID, "error", err)
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.store.SaveQuizPoll(storeCtx, database.QuizPoll{ChatID: chatID, MessageID: messageID, SentAt: s.now().UTC()}); err != nil {
		s.logger.WarnContext(ctx, "Failed to record quiz poll", "chat_id", chatID, "message_id", messageID, "error", err)
	}
	return nil
}
