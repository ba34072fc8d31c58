package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/chattop/internal/config"
	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/ingest"
	"github.com/edgard/chattop/internal/leaderboard"
)

type apiCall struct {
	Method string
	Params map[string]string
}

// telegramStub records Bot API calls and answers them successfully unless
// the method is listed in failing.
type telegramStub struct {
	mu      sync.Mutex
	calls   []apiCall
	failing map[string]bool
}

func newTestBot(t *testing.T) (*bot.Bot, *telegramStub) {
	t.Helper()
	stub := &telegramStub{failing: make(map[string]bool)}
	srv := httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(srv.Close)

	b, err := bot.New("123456:test-token", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}
	return b, stub
}

func (s *telegramStub) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	params := make(map[string]string)
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		for k := range r.MultipartForm.File {
			params[k] = "<file>"
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, apiCall{Method: method, Params: params})
	failing := s.failing[method]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case failing:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: failed on purpose"}`)
	case method == "answerCallbackQuery" || method == "deleteMessage" || method == "sendChatAction":
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"date":1,"chat":{"id":1,"type":"group"}}}`)
	}
}

func (s *telegramStub) byMethod(method string) []apiCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []apiCall
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *telegramStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeStore implements the store methods the handlers use. Calling any other
// method panics through the nil embedded interface.
type fakeStore struct {
	database.Store

	mu               sync.Mutex
	recorded         []*database.MessageEvent
	registered       []database.ChatInfo
	spam             map[int64]database.SpamState
	snapshot         *database.LeaderboardSnapshot
	leaderboardErr   error
	leaderboardCalls int
	chats            []database.Chat
	chatCounts       []database.ChatCount
	welcomeIndex     int
	lockAttempts     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{spam: make(map[int64]database.SpamState), snapshot: &database.LeaderboardSnapshot{}}
}

func (s *fakeStore) RecordMessage(_ context.Context, event *database.MessageEvent, _ database.ChatInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, event)
	return nil
}

func (s *fakeStore) RegisterChat(_ context.Context, chat database.ChatInfo, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, chat)
	return nil
}

func (s *fakeStore) UpdateSpamState(_ context.Context, userID int64, fn func(state *database.SpamState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.spam[userID]
	state.UserID = userID
	if err := fn(&state); err != nil {
		return err
	}
	s.spam[userID] = state
	return nil
}

func (s *fakeStore) Leaderboard(context.Context, database.LeaderboardQuery) (*database.LeaderboardSnapshot, error) {
	s.mu.Lock()
	s.leaderboardCalls++
	s.mu.Unlock()
	if s.leaderboardErr != nil {
		return nil, s.leaderboardErr
	}
	return s.snapshot, nil
}

func (s *fakeStore) GetChat(context.Context, int64) (*database.Chat, error) {
	return &database.Chat{ChatID: -100, Title: "Test Chat", Active: true}, nil
}

func (s *fakeStore) ListActiveChats(context.Context) ([]database.Chat, error) {
	return s.chats, nil
}

func (s *fakeStore) UserChatCounts(context.Context, int64) ([]database.ChatCount, error) {
	return s.chatCounts, nil
}

func (s *fakeStore) NextWelcomeIndex(context.Context, int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.welcomeIndex
	s.welcomeIndex++
	return i, nil
}

func (s *fakeStore) TryAcquireQuizLock(context.Context, time.Time, time.Duration, time.Duration) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockAttempts++
	return time.Time{}, false, nil
}

func testDeps(store *fakeStore) HandlerDeps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Telegram: config.TelegramConfig{OwnerID: 1},
		Database: config.DatabaseConfig{QueryTimeout: time.Second},
		Quiz:     config.QuizConfig{Concurrency: 2},
		Welcome:  config.WelcomeConfig{Enabled: true},
		Messages: config.DefaultMessages,
	}
	return HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Recorder:   ingest.NewRecorder(store, log, time.Second).WithBackoff(time.Millisecond),
		Aggregator: leaderboard.NewAggregator(store, time.Second, log),
		Renderer:   leaderboard.NewRenderer(leaderboard.RendererConfig{}, log),
	}
}
